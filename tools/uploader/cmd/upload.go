package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/tools/uploader/pkg/uploader"
)

var uploadFlags struct {
	connection   string
	remoteDir    string
	remoteName   string
	noMkdir      bool
	timeout      time.Duration
	preserveTime bool
	permissions  string
	speedLimit   int64
	noOverwrite  bool
}

var uploadCmd = &cobra.Command{
	Use:   "upload <local-file>...",
	Short: "Upload files to a remote directory",
	Long: `Upload one or more local files into a remote directory.

Missing remote directories are created first unless --no-mkdir is
given. Interrupting the command (Ctrl-C) or hitting --timeout aborts
the transfer in flight.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		perms, err := parsePermissions(uploadFlags.permissions)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if uploadFlags.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, uploadFlags.timeout)
			defer cancel()
		}

		ctx, a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		results, err := a.uploader.Upload(ctx, uploader.Request{
			Connection:          uploadFlags.connection,
			LocalPaths:          args,
			RemoteDirectory:     uploadFlags.remoteDir,
			RemoteFileName:      uploadFlags.remoteName,
			SkipEnsureStructure: uploadFlags.noMkdir,
			Transfer: engine.TransferOptions{
				PreserveTimestamp: uploadFlags.preserveTime,
				FilePermissions:   perms,
				SpeedLimit:        uploadFlags.speedLimit,
				NoOverwrite:       uploadFlags.noOverwrite,
			},
		})
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s -> %s\t%d bytes\t%s\n", r.Status, r.LocalPath, r.RemotePath, r.Bytes, r.TransferID)
		}
		return err
	},
}

func parsePermissions(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil || n > 0o7777 {
		return 0, eris.Wrapf(errors.ErrInvalidOptions, "permissions %q must be octal, e.g. 0644", s)
	}
	return os.FileMode(n), nil
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	f := uploadCmd.Flags()
	f.StringVarP(&uploadFlags.connection, "conn", "c", "", "connection string name or descriptor")
	f.StringVarP(&uploadFlags.remoteDir, "remote-dir", "d", "", "remote directory; '/' and '\\' both separate segments")
	f.StringVarP(&uploadFlags.remoteName, "remote-name", "n", "", "remote file name (single file only)")
	f.BoolVar(&uploadFlags.noMkdir, "no-mkdir", false, "do not create missing remote directories")
	f.DurationVar(&uploadFlags.timeout, "timeout", 0, "abort the upload after this long (0 = never)")
	f.BoolVar(&uploadFlags.preserveTime, "preserve-time", false, "keep the local modification time")
	f.StringVar(&uploadFlags.permissions, "permissions", "", "octal permissions for the uploaded file")
	f.Int64Var(&uploadFlags.speedLimit, "speed-limit", 0, "bytes per second (0 = unlimited)")
	f.BoolVar(&uploadFlags.noOverwrite, "no-overwrite", false, "fail instead of replacing an existing remote file")
	_ = uploadCmd.MarkFlagRequired("conn")
}
