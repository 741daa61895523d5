package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/absfs/mountvfs"
)

var (
	manifestPath string
	mountSpecs   []string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:           "mountvfs",
	Short:         "Inspect and serve a layered virtual filesystem",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// parseMountSpec parses "vfsdir=realpath[@priority]".
func parseMountSpec(spec string) (mountvfs.ManifestMount, error) {
	vfsDir, realPath, ok := strings.Cut(spec, "=")
	if !ok {
		return mountvfs.ManifestMount{}, errors.Errorf("mount %q: want vfsdir=realpath[@priority]", spec)
	}
	m := mountvfs.ManifestMount{VFS: vfsDir, Path: realPath}
	// a suffix that is not a number belongs to the path
	if i := strings.LastIndexByte(realPath, '@'); i >= 0 {
		if pri, err := strconv.ParseUint(realPath[i+1:], 10, 32); err == nil {
			m.Path = realPath[:i]
			m.Priority = uint(pri)
		}
	}
	if m.Path == "" {
		return mountvfs.ManifestMount{}, errors.Errorf("mount %q: missing real path", spec)
	}
	return m, nil
}

// openVFS builds the VFS described by --manifest and --mount.
func openVFS(log logrus.FieldLogger, extra ...mountvfs.Option) (*mountvfs.VFS, error) {
	manifest := &mountvfs.Manifest{}
	if manifestPath != "" {
		m, err := mountvfs.ReadManifestFile(manifestPath)
		if err != nil {
			return nil, err
		}
		manifest = m
	}
	for _, spec := range mountSpecs {
		m, err := parseMountSpec(spec)
		if err != nil {
			return nil, err
		}
		manifest.Mounts = append(manifest.Mounts, m)
	}
	if len(manifest.Mounts) == 0 {
		return nil, errors.New("nothing mounted: pass --manifest or --mount")
	}

	opts := append(manifest.Options(), mountvfs.WithLogger(log))
	opts = append(opts, extra...)
	v := mountvfs.New(opts...)
	if err := manifest.Apply(v); err != nil {
		return nil, err
	}
	return v, nil
}

// parseArg turns a command line path into a VFS path. A leading "/" is
// accepted and dropped.
func parseArg(arg string, dir bool) (mountvfs.Path, error) {
	arg = strings.TrimLeft(arg, "/")
	if dir {
		return mountvfs.DirPath(arg)
	}
	return mountvfs.ParsePath(arg)
}

// resolveArg parses arg as a file path, falling back to a directory path
// when no such file exists.
func resolveArg(v *mountvfs.VFS, arg string) (mountvfs.Path, error) {
	p, err := parseArg(arg, false)
	if err != nil || p.IsDir() {
		return p, err
	}
	if _, err := v.LookupFile(p); errors.Is(err, mountvfs.ErrFileNotFound) {
		return parseArg(arg, true)
	}
	return p, nil
}

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVFS(newLogger())
		if err != nil {
			return err
		}
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		dir, err := parseArg(arg, true)
		if err != nil {
			return err
		}
		entries, err := v.ReadDir(dir)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, e := range entries {
			if e.IsDir {
				fmt.Fprintf(w, "%s/\t\t\t\n", e.Name)
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", e.Name, e.File.Size(), e.File.Priority(), e.File.Precedence())
		}
		return w.Flush()
	},
}

var catCmd = &cobra.Command{
	Use:   "cat file",
	Short: "Print the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVFS(newLogger())
		if err != nil {
			return err
		}
		p, err := parseArg(args[0], false)
		if err != nil {
			return err
		}
		data, err := v.Load(p)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var statCmd = &cobra.Command{
	Use:   "stat path",
	Short: "Describe a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVFS(newLogger())
		if err != nil {
			return err
		}
		p, err := resolveArg(v, args[0])
		if err != nil {
			return err
		}
		info, err := v.Stat(p)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "path:       %s\n", p)
		fmt.Fprintf(out, "dir:        %v\n", info.IsDir)
		if !info.IsDir {
			fmt.Fprintf(out, "size:       %d\n", info.Size)
			fmt.Fprintf(out, "modified:   %s\n", info.ModTime)
			fmt.Fprintf(out, "precedence: %s\n", info.Precedence)
		}
		fmt.Fprintf(out, "priority:   %d\n", info.Priority)
		fmt.Fprintf(out, "origin:     %s\n", info.Origin)
		return nil
	},
}

var realpathCmd = &cobra.Command{
	Use:   "realpath path",
	Short: "Print the real path behind a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVFS(newLogger())
		if err != nil {
			return err
		}
		p, err := resolveArg(v, args[0])
		if err != nil {
			return err
		}
		realPath, err := v.RealPath(p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), realPath)
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write file [source]",
	Short: "Store a file through the VFS, reading stdin without source",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVFS(newLogger())
		if err != nil {
			return err
		}
		p, err := parseArg(args[0], false)
		if err != nil {
			return err
		}
		var data []byte
		if len(args) == 2 && args[1] != "-" {
			data, err = os.ReadFile(args[1])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return errors.Wrap(err, "read source")
		}
		if err := v.CreateFile(p, data); err != nil {
			return err
		}
		realPath, err := v.RealPath(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", p, realPath)
		return nil
	},
}

var (
	treePattern string
	treeDump    bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "List every file below a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVFS(newLogger())
		if err != nil {
			return err
		}
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		dir, err := parseArg(arg, true)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		err = v.ForEachFile(dir, treePattern, true, func(p mountvfs.Path, f *mountvfs.File) error {
			_, err := fmt.Fprintf(out, "%s\t%s\n", p, f.Source())
			return err
		})
		if err != nil {
			return err
		}
		if treeDump {
			fmt.Fprint(out, v.Text())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "f", "", "YAML mount manifest")
	rootCmd.PersistentFlags().StringArrayVarP(&mountSpecs, "mount", "m", nil,
		"Mount vfsdir=realpath[@priority], after the manifest entries")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	treeCmd.Flags().StringVarP(&treePattern, "pattern", "p", "", "Only list names matching the pattern")
	treeCmd.Flags().BoolVar(&treeDump, "dump", false, "Also dump the materialized tree")

	rootCmd.AddCommand(lsCmd, catCmd, statCmd, realpathCmd, writeCmd, treeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
