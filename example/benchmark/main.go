package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beanbocchi/nimbus/config"
	"github.com/beanbocchi/nimbus/internal/utils/blake3"
	"github.com/beanbocchi/nimbus/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./example/benchmark <filename>")
		fmt.Println("Example: go run ./example/benchmark /path/to/largefile.bin")
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1]); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, filename string) error {
	info, err := os.Stat(filename)
	if err != nil {
		return err
	}
	fileSize := info.Size()

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
	bucket := client.DefaultBucket()
	key := bucket.NewKey("benchmark/" + filepath.Base(filename))

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("Transfer Benchmark")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("File:   %s\n", filename)
	fmt.Printf("Size:   %s (%d bytes)\n", formatSize(fileSize), fileSize)
	fmt.Printf("Target: %s/%s\n", bucket.Name(), key.Name())
	fmt.Println()

	fmt.Printf("%-12s %15s %15s %s\n", "Operation", "Time", "Throughput", "Digest")
	fmt.Println(strings.Repeat("-", 70))

	// Local digest
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	start := time.Now()
	localDigest, err := blake3.Compute(file)
	file.Close()
	if err != nil {
		return err
	}
	printResult("hash", time.Since(start), fileSize, localDigest)

	// Upload
	file, err = os.Open(filename)
	if err != nil {
		return err
	}
	start = time.Now()
	_, err = key.WriteFrom(ctx, file, sdk.WriteOptions{Size: fileSize})
	file.Close()
	if err != nil {
		return err
	}
	printResult("upload", time.Since(start), fileSize, key.Digest())

	// Download
	digester := blake3.NewDigester()
	start = time.Now()
	if _, err := key.ReadTo(ctx, digester, sdk.ReadOptions{}); err != nil {
		return err
	}
	downloadDigest := digester.Hex()
	printResult("download", time.Since(start), fileSize, downloadDigest)

	// Last half only
	half := fileSize / 2
	start = time.Now()
	if _, err := key.ReadTo(ctx, io.Discard, sdk.ReadOptions{Slice: sdk.SliceFrom(half)}); err != nil {
		return err
	}
	printResult("range", time.Since(start), fileSize-half, "")

	fmt.Println()
	if localDigest != downloadDigest {
		return fmt.Errorf("digest mismatch: local %s, downloaded %s", localDigest, downloadDigest)
	}
	fmt.Println("Round trip verified")

	return key.Delete(ctx, "")
}

func printResult(name string, duration time.Duration, size int64, digest string) {
	throughput := float64(size) / (1024 * 1024) / duration.Seconds()
	fmt.Printf("%-12s %15s %12.2f MB/s %s\n",
		name,
		duration.Round(time.Microsecond),
		throughput,
		digest,
	)
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
