// Package seed loads the immutable stage/repository/task hierarchy.
//
// The embedded checklist.yaml is the canonical source. Loading is idempotent:
// existing rows are left untouched, so task progress survives restarts.
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tasktracker/internal/domain"
	"tasktracker/internal/repo"
)

//go:embed checklist.yaml
var defaultChecklist []byte

type Checklist struct {
	Stages []Stage `yaml:"stages" validate:"required,min=1,unique=ID,dive"`
}

type Stage struct {
	ID           string       `yaml:"id" validate:"required,max=128"`
	Title        string       `yaml:"title" validate:"required"`
	Description  string       `yaml:"description"`
	Ordering     int          `yaml:"ordering" validate:"gte=0"`
	Repositories []Repository `yaml:"repositories" validate:"required,min=1,unique=ID,dive"`
}

type Repository struct {
	ID          string `yaml:"id" validate:"required,max=128"`
	Title       string `yaml:"title" validate:"required"`
	Description string `yaml:"description"`
	Ordering    int    `yaml:"ordering" validate:"gte=0"`
	Tasks       []Task `yaml:"tasks" validate:"required,min=1,unique=ID,dive"`
}

type Task struct {
	ID          string `yaml:"id" validate:"required,max=128"`
	Title       string `yaml:"title" validate:"required"`
	Description string `yaml:"description"`
	Ordering    int    `yaml:"ordering" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded canonical checklist.
func Default() (Checklist, error) {
	return Parse(defaultChecklist)
}

// FromFile reads and validates a checklist YAML file.
func FromFile(path string) (Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checklist{}, err
	}
	return Parse(data)
}

// Parse decodes checklist YAML and validates it.
func Parse(data []byte) (Checklist, error) {
	var c Checklist
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Checklist{}, fmt.Errorf("invalid checklist yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Checklist{}, err
	}
	return c, nil
}

// Validate checks field constraints and that repository and task ids are
// unique across the whole checklist, not just within their parent.
func (c Checklist) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid checklist: %w", err)
	}
	repoIDs := map[string]string{}
	taskIDs := map[string]string{}
	for _, s := range c.Stages {
		for _, r := range s.Repositories {
			if prev, ok := repoIDs[r.ID]; ok {
				return fmt.Errorf("invalid checklist: repository %s appears in stages %s and %s", r.ID, prev, s.ID)
			}
			repoIDs[r.ID] = s.ID
			for _, t := range r.Tasks {
				if prev, ok := taskIDs[t.ID]; ok {
					return fmt.Errorf("invalid checklist: task %s appears in repositories %s and %s", t.ID, prev, r.ID)
				}
				taskIDs[t.ID] = r.ID
			}
		}
	}
	return nil
}

// Counts reports how many rows of each kind a checklist holds.
func (c Checklist) Counts() repo.Counts {
	var n repo.Counts
	n.Stages = len(c.Stages)
	for _, s := range c.Stages {
		n.Repositories += len(s.Repositories)
		for _, r := range s.Repositories {
			n.Tasks += len(r.Tasks)
		}
	}
	return n
}

// Result reports what a Load call inserted.
type Result struct {
	Stages       int `json:"stages"`
	Repositories int `json:"repositories"`
	Tasks        int `json:"tasks"`
}

// Load inserts the checklist in one transaction. Rows that already exist are
// skipped and every task gets a not-started progress row if it has none.
func Load(ctx context.Context, db *sql.DB, c Checklist) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	r := repo.Repo{DB: db}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	var res Result
	for _, s := range c.Stages {
		ok, err := r.InsertStage(ctx, tx, domain.Stage{
			ID: s.ID, Title: s.Title, Description: optional(s.Description), Ordering: s.Ordering,
		})
		if err != nil {
			return Result{}, fmt.Errorf("insert stage %s: %w", s.ID, err)
		}
		res.Stages += count(ok)
		for _, rp := range s.Repositories {
			ok, err := r.InsertRepository(ctx, tx, domain.Repository{
				ID: rp.ID, StageID: s.ID, Title: rp.Title, Description: optional(rp.Description), Ordering: rp.Ordering,
			})
			if err != nil {
				return Result{}, fmt.Errorf("insert repository %s: %w", rp.ID, err)
			}
			res.Repositories += count(ok)
			for _, t := range rp.Tasks {
				ok, err := r.InsertTask(ctx, tx, domain.Task{
					ID: t.ID, RepositoryID: rp.ID, Title: t.Title, Description: optional(t.Description), Ordering: t.Ordering,
				})
				if err != nil {
					return Result{}, fmt.Errorf("insert task %s: %w", t.ID, err)
				}
				res.Tasks += count(ok)
				if err := r.EnsureProgress(ctx, tx, t.ID); err != nil {
					return Result{}, fmt.Errorf("init progress %s: %w", t.ID, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func count(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
