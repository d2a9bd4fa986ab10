package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/observerw/rrdt/conn"
	"github.com/observerw/rrdt/wire"
)

const sendBufSize = 8 * 1024

func newSendCmd(log *logrus.Logger) *cobra.Command {
	var listenAddr, filePath string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Hold a file and wait for one peer to retrieve it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), log, listenAddr, filePath)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", ":2334", "UDP address to bind")
	cmd.Flags().StringVar(&filePath, "file", "output.bin", "file to serve")
	return cmd
}

// runSend plays the role the original's transport/send.rs plays: the
// file holder prescans its own data and binds as the Listener, since
// only the Listener can decide compressed-vs-normal from static
// configuration (spec §4.2 step 2).
func runSend(ctx context.Context, log *logrus.Logger, listenAddr, filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("invalid file path %q", filePath)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, sendBufSize)
	size := uint64(info.Size())

	if b, ok, err := tryCompress(reader); err != nil {
		return err
	} else if ok {
		return sendCompressed(ctx, log, listenAddr, b, size)
	}

	return sendChunked(ctx, log, listenAddr, reader, size)
}

func sendCompressed(ctx context.Context, log *logrus.Logger, listenAddr string, b byte, size uint64) error {
	listener, err := conn.Bind(logrus.NewEntry(log), listenAddr, conn.NewParams())
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Info("serving compressed shortcut")
	return listener.ServeCompressedOnce(ctx, wire.CompressedParams{Byte: b, Size: size})
}

func sendChunked(ctx context.Context, log *logrus.Logger, listenAddr string, reader *bufio.Reader, size uint64) error {
	streamCount := size/wire.StreamChunkSize + 1
	if size%wire.StreamChunkSize == 0 && size > 0 {
		streamCount = size / wire.StreamChunkSize
	}
	if streamCount == 0 {
		streamCount = 1
	}

	params := conn.NewParams(conn.WithStreams(uint16(streamCount)))
	listener, err := conn.Bind(logrus.NewEntry(log), listenAddr, params)
	if err != nil {
		return err
	}
	defer listener.Close()

	c, err := listener.Accept(ctx)
	if err != nil {
		return err
	}

	buf := make([]byte, sendBufSize)
	for i := uint64(0); i < streamCount; i++ {
		s, err := c.Open()
		if err != nil {
			return err
		}
		log.WithField("stream", s.ID()).Info("sending")

		var total uint64
		for {
			n, rerr := reader.Read(buf)
			if n > 0 {
				if _, werr := s.Write(buf[:n]); werr != nil {
					return werr
				}
				total += uint64(n)
			}
			if rerr != nil || total >= wire.StreamChunkSize {
				break
			}
		}
		s.MarkWrote()
		log.WithField("stream", s.ID()).Info("sent")
	}

	return c.Close(ctx)
}
