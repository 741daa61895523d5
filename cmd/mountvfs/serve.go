//go:build linux || darwin || freebsd

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/absfs/mountvfs"
	"github.com/absfs/mountvfs/fuseview"
)

var serveCmd = &cobra.Command{
	Use:   "serve mountpoint",
	Short: "Serve the VFS read-only over FUSE, following changes of watched mounts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountpoint := filepath.Clean(args[0])
		log := newLogger()

		watcher, err := mountvfs.NewNotifyWatcher(log)
		if err != nil {
			return err
		}
		defer watcher.Close()

		v, err := openVFS(log, mountvfs.WithWatcher(watcher))
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		go func() {
			if err := watcher.Run(ctx, v.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("watcher stopped")
			}
		}()

		c, err := fuse.Mount(mountpoint,
			fuse.FSName("mountvfs"),
			fuse.Subtype("mountvfs"),
			fuse.ReadOnly(),
		)
		if err != nil {
			return errors.Wrapf(err, "mount %s", mountpoint)
		}
		defer c.Close()

		go func() {
			<-ctx.Done()
			if err := fuse.Unmount(mountpoint); err != nil {
				log.WithError(err).Warn("unmount failed")
			}
		}()

		log.WithField("mountpoint", mountpoint).Info("serving")
		if err := fusefs.Serve(c, fuseview.New(v, fuseview.WithLogger(log))); err != nil {
			return errors.Wrap(err, "serve")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
