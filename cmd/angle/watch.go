package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/midbel/angle/xslt"
	"github.com/midbel/cli"
)

var watchCmd = cli.Command{
	Name:    "watch",
	Summary: "run a transformation again every time the stylesheet or the document changes",
	Handler: &WatchCmd{},
}

const watchDelay = time.Millisecond * 150

type WatchCmd struct {
	TransformCmd
}

func (c *WatchCmd) Run(args []string) error {
	set := flag.NewFlagSet("watch", flag.ContinueOnError)
	c.flags(set)
	set.StringVar(&c.File, "f", "", "output file")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 1 {
		return fmt.Errorf("stylesheet not given")
	}
	var (
		file = set.Arg(0)
		doc  = set.Arg(1)
	)
	if doc == "" && c.Template == "" {
		return fmt.Errorf("document not given")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watchFiles(watcher, c.run(file, doc))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	var (
		timer = time.NewTimer(watchDelay)
		ready <-chan time.Time
	)
	timer.Stop()
	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if e.Has(fsnotify.Chmod) {
				break
			}
			timer.Reset(watchDelay)
			ready = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printError(err)
		case <-ready:
			ready = nil
			for _, f := range watcher.WatchList() {
				watcher.Remove(f)
			}
			watchFiles(watcher, c.run(file, doc))
		case <-sig:
			return nil
		}
	}
}

// run loads the stylesheet and transforms the document. It returns the files
// to watch for the next run.
func (c *WatchCmd) run(file, doc string) []string {
	files := []string{file}
	if doc != "" {
		files = append(files, doc)
	}
	sheet, err := xslt.Load(file)
	if err != nil {
		printError(err)
		return files
	}
	dir := filepath.Dir(file)
	for _, m := range sheet.Modules()[1:] {
		files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
	}
	if err := c.transformOne(sheet, doc); err != nil {
		printError(err)
	}
	fmt.Fprintln(os.Stderr, faintStyle.Render(fmt.Sprintf("%s: waiting for changes...", time.Now().Format(time.TimeOnly))))
	return files
}

func watchFiles(w *fsnotify.Watcher, files []string) {
	for _, f := range files {
		if err := w.Add(f); err != nil {
			printError(err)
		}
	}
}
