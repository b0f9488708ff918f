package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/teslashibe/go-mimic/pkg/kinematics"
	"github.com/teslashibe/go-mimic/pkg/record"
)

type SessionsCommand struct {
	Database string `long:"db" description:"Session database (overrides record.path)"`
	Limit    int    `short:"n" long:"limit" default:"20" description:"Maximum rows to print"`
	ID       string `long:"id" description:"Print the frames of one session"`
	After    uint64 `long:"after" description:"Only frames with a greater sequence number"`
}

func (c *SessionsCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Record.Path
	if c.Database != "" {
		path = c.Database
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no session database at %s", path)
	}

	store, err := record.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.ID != "" {
		return c.printFrames(store)
	}
	return c.printSessions(store)
}

func (c *SessionsCommand) printSessions(store *record.Store) error {
	sessions, err := store.Sessions().List(c.Limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tROBOT\tSTARTED\tDURATION\tFRAMES")
	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Source, s.Robot, s.StartedAt.Format(time.DateTime), duration, s.Frames)
	}
	return w.Flush()
}

func (c *SessionsCommand) printFrames(store *record.Store) error {
	sess, err := store.Sessions().GetByID(c.ID)
	if errors.Is(err, record.ErrNotFound) {
		return fmt.Errorf("session %s not found", c.ID)
	}
	if err != nil {
		return err
	}
	frames, err := store.Sessions().Frames(sess.ID, c.After, c.Limit)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s: %s on %s, %d frames\n\n", sess.ID, sess.Source, sess.Robot, sess.Frames)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tMEDIA\tSTATE\tCOMMANDS")
	for _, f := range frames {
		state := f.State
		if f.Failed {
			state += " (failed)"
		}
		cmds := make([]string, 0, len(f.Commands))
		for _, cmd := range f.Commands {
			cmds = append(cmds, fmt.Sprintf("%s=%.1f°", cmd.Joint, kinematics.Degrees(cmd.Value)))
		}
		media := (time.Duration(f.MediaMs) * time.Millisecond).String()
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.Seq, media, state, strings.Join(cmds, " "))
	}
	return w.Flush()
}
