package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/observerw/rrdt/conn"
	"github.com/observerw/rrdt/errs"
	"github.com/observerw/rrdt/stream"
)

func newRecvCmd(log *logrus.Logger) *cobra.Command {
	var connectAddr, outPath string

	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Dial a peer and retrieve its file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecv(cmd.Context(), log, connectAddr, outPath)
		},
	}
	cmd.Flags().StringVar(&connectAddr, "connect", "127.0.0.1:2334", "peer UDP address")
	cmd.Flags().StringVar(&outPath, "out", "received.bin", "output file path")
	return cmd
}

// runRecv plays the original's transport/recv.rs role: the retrieving
// side dials out as the Builder and reacts to whichever BuildResult the
// Listener decided on.
func runRecv(ctx context.Context, log *logrus.Logger, connectAddr, outPath string) error {
	builder, err := conn.Dial(logrus.NewEntry(log), connectAddr, conn.NewParams())
	if err != nil {
		return err
	}

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	if result.Compressed != nil {
		builder.Close()
		return recvCompressed(outPath, result.Compressed.Byte, result.Compressed.Size)
	}
	return recvChunked(ctx, log, result.Connection, outPath)
}

const recvBufSize = 8 * 1024

func recvCompressed(outPath string, b byte, size uint64) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	chunk := make([]byte, recvBufSize)
	for i := range chunk {
		chunk[i] = b
	}
	for size > 0 {
		n := uint64(len(chunk))
		if size < n {
			n = size
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			return err
		}
		size -= n
	}
	return nil
}

func recvChunked(ctx context.Context, log *logrus.Logger, c *conn.Connection, outPath string) error {
	// Part files live under a per-run, collision-proof scratch directory
	// rather than sibling-named ".N" files next to outPath directly, so
	// two concurrent `rrdt recv` runs against the same --out path never
	// clobber each other's in-progress parts.
	scratchDir := filepath.Join(os.TempDir(), "rrdt-recv-"+uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)
	partsPath := filepath.Join(scratchDir, filepath.Base(outPath))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	count := 0

	for {
		s, err := c.Accept(ctx)
		if err != nil {
			if errors.Is(err, errs.ErrNoMoreStreams) {
				break
			}
			return err
		}

		partPath := variant(partsPath, int(s.ID()))
		count++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := drainStream(ctx, s, partPath); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			log.WithField("stream", s.ID()).Info("received")
		}()
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	if err := c.Close(ctx); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no streams received")
	}
	if err := merge(partsPath, count); err != nil {
		return err
	}
	return os.Rename(partsPath, outPath)
}

func drainStream(ctx context.Context, s *stream.RecvStream, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, recvBufSize)
	for {
		n, err := s.Read(ctx, buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
