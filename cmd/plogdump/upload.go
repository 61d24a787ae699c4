package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"

	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageprovider"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

type uploadCmd struct {
	File   string `arg:"" type:"existingfile" help:"Path to the plog."`
	Bucket string `help:"Bucket URL, such as gs://bucket or file:///dir." required:"" env:"PLOG_BUCKET_URL"`
	ID     string `help:"Id to store the plog under. Defaults to a new UUID."`
	Top    int    `help:"Number of top nodes kept in the summary." default:"50"`
}

func (c *uploadCmd) Run(g *globals) error {
	// Decode first so an invalid file is never stored.
	l, err := g.open(c.File)
	if err != nil {
		return err
	}

	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid id %q", id)
	}

	b, err := storageprovider.OpenBlob(g.ctx, c.Bucket)
	if err != nil {
		return err
	}
	defer b.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := storageutil.Copy(g.ctx, b, storageutil.PlogPath(id), f)
	if err != nil {
		return err
	}
	if err := plog.WriteSummary(g.ctx, b, l.Summarize(id, c.Top)); err != nil {
		return err
	}

	fmt.Fprintf(g.out, "uploaded %s (%d bytes) as %s\n", filepath.Base(c.File), n, id)
	return nil
}
