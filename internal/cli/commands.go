package cli

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
	"github.com/beanbocchi/nimbus/pkg/sdk"
)

func newListCommand(app *App) *cobra.Command {
	var (
		params   sdk.ListParams
		versions bool
		long     bool
	)
	cmd := &cobra.Command{
		Use:   "ls [bucket]",
		Short: "List buckets, or the keys of one bucket",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := app.Client()
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(app.Stdout, 0, 4, 2, ' ', 0)
			defer out.Flush()

			if len(args) == 0 {
				buckets, err := client.GetAllBuckets(ctx)
				if err != nil {
					return err
				}
				for _, bucket := range buckets {
					if long {
						fmt.Fprintf(out, "%s\tversioning=%t\n", bucket.Name(), bucket.Versioning())
					} else {
						fmt.Fprintln(out, bucket.Name())
					}
				}
				return nil
			}

			bucket := client.GetBucket(args[0])
			rs := bucket.List(params)
			if versions {
				rs = bucket.ListVersions(sdk.VersionListParams{
					MaxKeys:   params.MaxKeys,
					Prefix:    params.Prefix,
					KeyMarker: params.Marker,
					Delimiter: params.Delimiter,
				})
			}
			for entry, err := range rs.All(ctx) {
				if err != nil {
					return err
				}
				key, ok := entry.(*sdk.Key)
				if !long || !ok {
					fmt.Fprintln(out, entry.Name())
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", key.Name(), key.VersionID(), key.LastModified().Format(http.TimeFormat))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&params.Prefix, "prefix", "p", "", "only list keys starting with prefix")
	flags.StringVarP(&params.Delimiter, "delimiter", "d", "", "roll keys up to the first delimiter after the prefix")
	flags.StringVar(&params.Marker, "marker", "", "start after this key")
	flags.IntVar(&params.MaxKeys, "page-size", 0, "keys fetched per request")
	flags.BoolVar(&versions, "versions", false, "list every version instead of the newest")
	flags.BoolVarP(&long, "long", "l", false, "show version ids and timestamps")
	return cmd
}

func newMakeBucketCommand(app *App) *cobra.Command {
	var versioning bool
	cmd := &cobra.Command{
		Use:   "mb <bucket>",
		Short: "Create a bucket",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			bucket, err := client.CreateBucket(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if versioning {
				if err := bucket.ConfigureVersioning(cmd.Context(), true); err != nil {
					return err
				}
			}
			fmt.Fprintln(app.Stdout, bucket.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&versioning, "versioning", false, "keep every version of each key")
	return cmd
}

func newRemoveCommand(app *App) *cobra.Command {
	var versionID string
	cmd := &cobra.Command{
		Use:   "rm <bucket> <key>",
		Short: "Delete a key, or one version of it",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			return client.GetBucket(args[0]).NewKey(args[1]).Delete(cmd.Context(), versionID)
		},
	}
	cmd.Flags().StringVar(&versionID, "version", "", "delete only this version")
	return cmd
}

func newCopyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy between local files, standard streams and buckets",
		Long: `Copy one object. Locations are local paths, - for standard input or
output, or scheme://bucket/key with scheme nimbus.io, s3 or storj. A
destination ending in / or naming a directory takes the source's base name.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.transfer(cmd, args[0], args[1], false)
		},
	}
}

func newMoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Copy, then delete the source",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.transfer(cmd, args[0], args[1], true)
		},
	}
}

func (app *App) transfer(cmd *cobra.Command, srcArg, dstArg string, move bool) error {
	ctx := cmd.Context()

	src, err := ParseLocation(srcArg)
	if err != nil {
		return err
	}
	dst, err := ParseLocation(dstArg)
	if err != nil {
		return err
	}
	if src.Remote() && src.Key == "" {
		return usagef("source %s needs a key", src)
	}
	if move && src.Scheme == SchemeStdio {
		return usagef("cannot move standard input")
	}
	if dst, err = destination(src, dst); err != nil {
		return err
	}
	if src == dst {
		return usagef("source and destination are the same")
	}

	srcStore, srcKey, releaseSrc, err := app.store(ctx, src)
	if err != nil {
		return err
	}
	defer releaseSrc()
	dstStore, dstKey, releaseDst, err := app.store(ctx, dst)
	if err != nil {
		return err
	}
	defer releaseDst()

	app.log.Info("copying", "src", src, "dst", dst)
	if err := objectstore.Copy(ctx, dstStore, dstKey, srcStore, srcKey); err != nil {
		return err
	}
	if !move {
		return nil
	}

	app.log.Info("removing source", "src", src)
	return srcStore.Delete(ctx, srcKey)
}
