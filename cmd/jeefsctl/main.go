// jeefsctl manipulates JetHome EEPROM file-system images: format an image,
// list, add, read, verify and delete files, and inspect the board-identity
// header.
//
// Defaults come from the environment: JEEFS_IMAGE (image path), JEEFS_SIZE
// (capacity when creating an image), JEEFS_HEADER_VERSION (format version).
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/jethome-iot/jeefs"
)

var (
	imagePath   string
	imageSize   int
	headerVer   int
	outputPath  string
	verbose     bool
	legacyMagic bool
)

func openImage(create bool) (*jeefs.FS, error) {
	if imagePath == "" {
		return nil, fmt.Errorf("no image given: use --image or JEEFS_IMAGE")
	}
	size := uint16(0)
	if create {
		if imageSize <= 0 || imageSize > 0xFFFF {
			return nil, fmt.Errorf("invalid image size %d", imageSize)
		}
		size = uint16(imageSize)
	}
	var opts []jeefs.Option
	if verbose {
		opts = append(opts, jeefs.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	if legacyMagic {
		opts = append(opts, jeefs.WithLegacyMagic())
	}
	return jeefs.Open(imagePath, size, opts...)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "jeefsctl",
		Short:         "Manage JetHome EEPROM file-system images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&imagePath, "image", env.Str("JEEFS_IMAGE", ""), "EEPROM image path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&legacyMagic, "legacy-magic", false, "accept the pre-2023 JetHome header magic")

	formatCmd := &cobra.Command{
		Use:   "format",
		Short: "Initialize the image with a blank header and empty file region",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openImage(true)
			if err != nil {
				return err
			}
			defer fs.Close()
			if err := fs.Format(jeefs.Version(headerVer)); err != nil {
				return err
			}
			fmt.Printf("formatted %s: v%d header, %d bytes\n", imagePath, headerVer, fs.Size())
			return nil
		},
	}
	formatCmd.Flags().IntVar(&imageSize, "size", env.Int("JEEFS_SIZE", 4096), "image capacity when creating")
	formatCmd.Flags().IntVar(&headerVer, "version", env.Int("JEEFS_HEADER_VERSION", 3), "header version (1, 2 or 3)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored file names",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			names, err := fs.ListFiles(0)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <name> <datafile>",
		Short: "Add a file from the contents of datafile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			n, err := fs.AddFile(args[0], data)
			if err != nil {
				return err
			}
			fmt.Printf("added %s: %d bytes\n", args[0], n)
			return nil
		},
	}

	writeCmd := &cobra.Command{
		Use:   "write <name> <datafile>",
		Short: "Overwrite an existing file with the contents of datafile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			n, err := fs.WriteFile(args[0], data)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s: %d bytes\n", args[0], n)
			return nil
		},
	}

	readCmd := &cobra.Command{
		Use:   "read <name>",
		Short: "Read a file to stdout or --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			buf := make([]byte, fs.Size())
			n, err := fs.ReadFile(args[0], buf)
			if err != nil {
				return err
			}
			if outputPath != "" {
				return os.WriteFile(outputPath, buf[:n], 0o644)
			}
			_, err = os.Stdout.Write(buf[:n])
			return err
		},
	}
	readCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write file data here instead of stdout")

	verifyCmd := &cobra.Command{
		Use:   "verify <name>",
		Short: "Check a file's stored data CRC32",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			if err := fs.VerifyFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: CRC ok\n", args[0])
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a file and compact the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			if err := fs.DeleteFile(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	headerCmd := &cobra.Command{
		Use:   "header",
		Short: "Show the decoded board-identity header and its raw bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := openImage(false)
			if err != nil {
				return err
			}
			defer fs.Close()
			return dumpHeader(fs)
		},
	}

	rootCmd.AddCommand(formatCmd, listCmd, addCmd, writeCmd, readCmd, verifyCmd, deleteCmd, headerCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dumpHeader(fs *jeefs.FS) error {
	hdr, err := fs.Header()
	if err != nil {
		return err
	}

	consistency := "ok"
	if err := fs.HeaderCheckConsistency(); err != nil {
		consistency = err.Error()
	}

	fmt.Printf("version:       %d (%d bytes)\n", hdr.Version(), hdr.Size())
	fmt.Printf("consistency:   %s\n", consistency)
	fmt.Printf("boardname:     %q\n", hdr.Boardname())
	fmt.Printf("boardversion:  %q\n", hdr.BoardVersion())
	fmt.Printf("serial:        %x\n", hdr.Serial())
	fmt.Printf("usid:          %x\n", hdr.USID())
	fmt.Printf("cpuid:         %x\n", hdr.CPUID())
	mac := hdr.MAC()
	fmt.Printf("mac:           %02x:%02x:%02x:%02x:%02x:%02x\n", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])

	if mods, err := hdr.Modules(); err == nil {
		fmt.Printf("modules:       %v\n", mods)
	}
	if alg, err := hdr.SignatureVersion(); err == nil {
		fmt.Printf("sig algorithm: %d\n", alg)
		ts, _ := hdr.Timestamp()
		fmt.Printf("timestamp:     %d\n", ts)
	}

	fmt.Println()
	fmt.Println(hex.Dump(hdr.Bytes()))
	return nil
}
