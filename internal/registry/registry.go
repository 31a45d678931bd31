// Package registry applies add/edit/delete requests to the target registry.
// Each request kind is its own type and validates its own fields before the
// registry is touched.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.uber.org/zap"

	"github.com/hamed0406/pingkeeper/internal/domain"
	"github.com/hamed0406/pingkeeper/internal/repo"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid request")

var httpScheme = regexp.MustCompile(`^(?i)https?://`)

// Outcome is reported back to the client on success.
type Outcome struct {
	Msg    string         `json:"msg"`
	Target *domain.Target `json:"url,omitempty"`
}

// Command is implemented by AddCommand, EditCommand and DeleteCommand only.
type Command interface {
	validate() error
	apply(ctx context.Context, ts repo.TargetStore) (Outcome, error)
}

type AddCommand struct {
	Name string
	URL  string
}

type EditCommand struct {
	Name string
	URL  string
}

// DeleteCommand addresses the target by ID when set, by Name otherwise.
type DeleteCommand struct {
	Name string
	ID   int64
}

// Registration only accepts absolute http(s) URLs.
var urlRules = []validation.Rule{
	validation.Required.Error("URL is required"),
	is.RequestURL,
	validation.Match(httpScheme).Error("must be an http or https URL"),
}

func (c AddCommand) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.URL, urlRules...),
	)
}

func (c AddCommand) apply(ctx context.Context, ts repo.TargetStore) (Outcome, error) {
	t := &domain.Target{Name: c.Name, URL: c.URL}
	if err := ts.AddTarget(ctx, t); err != nil {
		return Outcome{}, err
	}
	return Outcome{Msg: "URL added.", Target: t}, nil
}

func (c EditCommand) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.URL, urlRules...),
	)
}

func (c EditCommand) apply(ctx context.Context, ts repo.TargetStore) (Outcome, error) {
	t, err := ts.GetTargetByName(ctx, c.Name)
	if err != nil {
		return Outcome{}, err
	}
	if err := ts.UpdateTargetURL(ctx, t.ID, c.URL); err != nil {
		return Outcome{}, err
	}
	t.URL = c.URL
	return Outcome{Msg: "URL updated.", Target: t}, nil
}

func (c DeleteCommand) validate() error {
	if c.ID != 0 {
		return validation.Validate(c.ID, validation.Min(int64(1)))
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required.Error("name or id is required")),
	)
}

func (c DeleteCommand) apply(ctx context.Context, ts repo.TargetStore) (Outcome, error) {
	var (
		t   *domain.Target
		err error
	)
	if c.ID != 0 {
		t, err = ts.GetTargetByID(ctx, c.ID)
	} else {
		t, err = ts.GetTargetByName(ctx, c.Name)
	}
	if err != nil {
		return Outcome{}, err
	}
	if err := ts.DeleteTarget(ctx, t.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{Msg: "URL deleted.", Target: t}, nil
}

// ParseAction builds a command from the query-string form
// action=add|edit|delete&name=..&id=..&url=..
func ParseAction(action, name, id, rawURL string) (Command, error) {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "add":
		return AddCommand{Name: name, URL: rawURL}, nil
	case "edit":
		return EditCommand{Name: name, URL: rawURL}, nil
	case "delete":
		cmd := DeleteCommand{Name: name}
		if id = strings.TrimSpace(id); id != "" {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: id: must be an integer", ErrInvalid)
			}
			cmd.ID = n
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: invalid action, choose between add, delete or edit", ErrInvalid)
	}
}

type Service struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
}

func NewService(logger *zap.Logger, ts repo.TargetStore) *Service {
	return &Service{Logger: logger, Targets: ts}
}

// Execute validates cmd and applies it. Rejected commands leave the registry
// untouched and return an error matching ErrInvalid, repo.ErrNotFound or
// repo.ErrDuplicateName.
func (s *Service) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	if err := cmd.validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	out, err := cmd.apply(ctx, s.Targets)
	if err != nil {
		return Outcome{}, err
	}
	s.Logger.Info("registry_changed",
		zap.String("msg", out.Msg),
		zap.Int64("id", out.Target.ID),
		zap.String("name", out.Target.Name),
		zap.String("url", out.Target.URL),
	)
	return out, nil
}
