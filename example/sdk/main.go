package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/pkg/sdk"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Printf("Example failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv(config.EnvConfigFile))
	if err != nil {
		return err
	}

	client, err := sdk.NewClient(sdk.Config{
		Endpoint: cfg.Service.Endpoint,
		Domain:   cfg.Service.Domain,
		Identity: cfg.Identity,
		Timeout:  cfg.Service.Timeout,
	})
	if err != nil {
		return err
	}

	// Bucket
	bucket, err := client.CreateUniqueBucket(ctx, nil)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	fmt.Printf("Created bucket %s\n", bucket.Name())

	// Write
	key := bucket.NewKey("greetings/hello.txt")
	key.SetMetadata("language", "en")
	versionID, err := key.WriteBytes(ctx, []byte("Hello from nimbus.io"), sdk.WriteOptions{})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s as version %s (blake3 %s)\n", key, versionID, key.Digest())

	// Ranged read
	data, _, err := key.ReadBytes(ctx, sdk.ReadOptions{Slice: sdk.SliceOf(6, 4)})
	if err != nil {
		return err
	}
	fmt.Printf("Bytes 6-9: %q\n", data)

	// Resume a download that stopped after 5 bytes
	sink := bytes.NewBufferString("Hello")
	if _, err := key.ResumeFrom(ctx, sink, int64(sink.Len()), sdk.ReadOptions{}); err != nil {
		return err
	}
	fmt.Printf("Resumed: %q\n", sink.String())

	language, err := bucket.NewKey(key.Name()).Metadata(ctx, "language")
	if err != nil {
		return err
	}
	fmt.Printf("Metadata language=%s\n", language.ValueOrZero())

	// Multipart
	upload, err := bucket.InitiateMultipartUpload(ctx, "greetings/joined.txt")
	if err != nil {
		return err
	}
	for part, text := range []string{"one ", "two ", "three"} {
		if _, err := upload.UploadPart(ctx, part+1, strings.NewReader(text), sdk.WriteOptions{}); err != nil {
			return err
		}
	}
	if err := upload.Complete(ctx); err != nil {
		return err
	}

	// Listing
	entries, err := bucket.List(sdk.ListParams{Prefix: "greetings/"}).Collect(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Printf("  %s\n", entry.Name())
	}

	// Cleanup
	for _, entry := range entries {
		if err := bucket.NewKey(entry.Name()).Delete(ctx, ""); err != nil {
			return err
		}
	}
	if err := client.DeleteBucket(ctx, bucket.Name()); err != nil {
		return err
	}
	fmt.Println("Done")
	return nil
}
