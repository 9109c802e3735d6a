// Command ihvmctl drives the IHVM outside of a real kernel: it loads a
// program blob, verifies it, and either disassembles it or fires it
// against a simulated host bridge — standing in for the register/fire
// path a driver would otherwise only reach through kernel syscalls.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cavern-os/cavern/internal/config"
	"github.com/cavern-os/cavern/internal/encoding"
	"github.com/cavern-os/cavern/internal/hostbridge"
	"github.com/cavern-os/cavern/internal/region"
	"github.com/cavern-os/cavern/internal/verify"
	"github.com/cavern-os/cavern/internal/vm"
)

func main() {
	log := logrus.New()

	rootCmd := &cobra.Command{
		Use:   "ihvmctl",
		Short: "Drive the Cavern interrupt handler VM outside of a kernel",
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	})

	var disasmPath string
	disasmCmd := &cobra.Command{
		Use:   "disasm",
		Short: "Disassemble a program blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(disasmPath)
			if err != nil {
				return fmt.Errorf("ihvmctl: reading %s: %w", disasmPath, err)
			}
			prog, err := encoding.Decode(buf)
			if err != nil {
				return fmt.Errorf("ihvmctl: decoding: %w", err)
			}
			for _, line := range encoding.DisassembleProgram(prog) {
				fmt.Println(line)
			}
			return nil
		},
	}
	disasmCmd.Flags().StringVarP(&disasmPath, "file", "f", "", "program blob to disassemble")
	disasmCmd.MarkFlagRequired("file")

	var verifyPath string
	var maxCycles uint64
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Statically verify a program blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(verifyPath)
			if err != nil {
				return fmt.Errorf("ihvmctl: reading %s: %w", verifyPath, err)
			}
			prog, err := encoding.Decode(buf)
			if err != nil {
				return fmt.Errorf("ihvmctl: decoding: %w", err)
			}
			var bound verify.BoundRegions
			for i := range bound {
				bound[i] = true
			}
			vp, err := verify.Verify(prog, bound, maxCycles)
			if err != nil {
				return fmt.Errorf("ihvmctl: verify failed: %w", err)
			}
			fmt.Printf("ok: %d instructions, conservative cycle bound %d\n", len(vp.Ops), vp.MaxCycles)
			return nil
		},
	}
	verifyCmd.Flags().StringVarP(&verifyPath, "file", "f", "", "program blob to verify")
	verifyCmd.Flags().Uint64Var(&maxCycles, "max-cycles", config.DefaultMaxCycles, "cycle budget ceiling")
	verifyCmd.MarkFlagRequired("file")

	var firePath string
	var fireVector uint32
	var fireQueueCap int
	fireCmd := &cobra.Command{
		Use:   "fire",
		Short: "Register a program against an interrupt vector and fire it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(firePath)
			if err != nil {
				return fmt.Errorf("ihvmctl: reading %s: %w", firePath, err)
			}
			decoded, err := encoding.Decode(buf)
			if err != nil {
				return fmt.Errorf("ihvmctl: decoding: %w", err)
			}
			var bound verify.BoundRegions
			for i := range bound {
				bound[i] = true
			}
			vp, err := verify.Verify(decoded, bound, maxCycles)
			if err != nil {
				return fmt.Errorf("ihvmctl: verify failed: %w", err)
			}

			registry := vm.NewRegistry(4)
			regions := *region.NewTable(make([]byte, 256), [encoding.NumRegions - 1]*region.Binding{})
			registry.Register(fireVector, vp, regions, maxCycles)

			bridge := hostbridge.New(fireQueueCap, log)
			meta := hostbridge.NewClockMetadataSource(0, 0).ReadInterruptMetadata(fireVector)

			results, err := registry.Fire(context.Background(), fireVector, meta, bridge, bridge, bridge)
			if err != nil {
				return fmt.Errorf("ihvmctl: fire: %w", err)
			}
			for _, r := range results {
				fmt.Printf("handler %s: %s panic_code=%#016x (err=%v)\n", r.HandlerID, r.State, uint64(r.PanicCode), r.Err)
			}
			for _, m := range bridge.Drain() {
				fmt.Printf("message %d: %d bytes\n", m.ID, len(m.Payload))
			}
			return nil
		},
	}
	fireCmd.Flags().StringVarP(&firePath, "file", "f", "", "program blob to fire")
	fireCmd.Flags().Uint32Var(&fireVector, "vector", 0, "interrupt vector to fire")
	fireCmd.Flags().IntVar(&fireQueueCap, "queue-capacity", 16, "simulated message queue capacity")
	fireCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(disasmCmd, verifyCmd, fireCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
