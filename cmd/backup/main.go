// Command backup dumps and restores the scheduler's database to/from a
// single JSON document, the Go equivalent of original_source's
// backup_db.py / restore_db.py, grounded on cmd/tarsy/main.go's
// flag-driven style but scoped to two subcommands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/config"
	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// document is the JSON backup format of spec.md §6.5.
type document struct {
	BackupTime    time.Time            `json:"backup_time"`
	Tasks         []taskRecord         `json:"tasks"`
	GlobalContext *globalContextRecord `json:"global_context"`
}

type taskRecord struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Context         string     `json:"context"`
	DueDate         *time.Time `json:"due_date"`
	ScheduledStart  *time.Time `json:"scheduled_start_time"`
	ScheduledEnd    *time.Time `json:"scheduled_end_time"`
	ActualStart     *time.Time `json:"actual_start_time"`
	ActualEnd       *time.Time `json:"actual_end_time"`
	Priority        float64    `json:"priority"`
	Completed       bool       `json:"completed"`
	NeedsScheduling bool       `json:"needs_scheduling"`
}

type globalContextRecord struct {
	Context string `json:"context"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: backup <dump|restore> -file <path>")
	}
	subcommand := os.Args[1]

	fs := flag.NewFlagSet(subcommand, flag.ExitOnError)
	filePath := fs.String("file", "db_backup.json", "path to the backup JSON document")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		log.Fatalf("failed to derive store configuration: %v", err)
	}
	s, err := store.Open(storeCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	switch subcommand {
	case "dump":
		if err := dump(ctx, s, *filePath); err != nil {
			log.Fatalf("dump failed: %v", err)
		}
	case "restore":
		if err := restore(ctx, s, *filePath); err != nil {
			log.Fatalf("restore failed: %v", err)
		}
	default:
		log.Fatalf("unknown subcommand %q: want dump or restore", subcommand)
	}
}

func dump(ctx context.Context, s store.Store, filePath string) error {
	tasks, err := s.Tasks().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	doc := document{BackupTime: time.Now().UTC(), Tasks: make([]taskRecord, 0, len(tasks))}
	for _, t := range tasks {
		doc.Tasks = append(doc.Tasks, toRecord(t))
	}

	if gc, err := s.Context().GetOrCreate(ctx); err == nil {
		doc.GlobalContext = &globalContextRecord{Context: gc.Context}
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", filePath, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	fmt.Printf("backed up %d tasks to %s\n", len(doc.Tasks), filePath)
	return nil
}

func restore(ctx context.Context, s store.Store, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	var doc document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}

	fmt.Printf("restoring from backup taken at %s\n", doc.BackupTime.Format(time.RFC3339))

	if doc.GlobalContext != nil {
		if _, err := s.Context().Update(ctx, doc.GlobalContext.Context); err != nil {
			return fmt.Errorf("restore global context: %w", err)
		}
	}

	for _, r := range doc.Tasks {
		t := &models.Task{
			Title:           r.Title,
			Description:     r.Description,
			Context:         r.Context,
			DueDate:         r.DueDate,
			ScheduledStart:  r.ScheduledStart,
			ScheduledEnd:    r.ScheduledEnd,
			ActualStart:     r.ActualStart,
			ActualEnd:       r.ActualEnd,
			Priority:        r.Priority,
			Completed:       r.Completed,
			NeedsScheduling: r.NeedsScheduling,
			CreatedAt:       time.Now().UTC(),
		}
		if _, err := s.Tasks().Create(ctx, t); err != nil {
			return fmt.Errorf("restore task %q: %w", r.Title, err)
		}
	}

	fmt.Printf("restored %d tasks\n", len(doc.Tasks))
	return nil
}

func toRecord(t *models.Task) taskRecord {
	return taskRecord{
		Title:           t.Title,
		Description:     t.Description,
		Context:         t.Context,
		DueDate:         t.DueDate,
		ScheduledStart:  t.ScheduledStart,
		ScheduledEnd:    t.ScheduledEnd,
		ActualStart:     t.ActualStart,
		ActualEnd:       t.ActualEnd,
		Priority:        t.Priority,
		Completed:       t.Completed,
		NeedsScheduling: t.NeedsScheduling,
	}
}
