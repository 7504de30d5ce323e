package school

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/observability"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resource"
)

// Service issues CRUD calls and keeps the hooks of a group consistent with
// them: a successful mutation invalidates every hook in the entry's area.
type Service struct {
	client   *api.Client
	group    *resource.Group
	logger   *slog.Logger
	recorder observability.Recorder
	retries  int
}

// NewService creates a service whose hooks live in group.
func NewService(client *api.Client, group *resource.Group, logger *slog.Logger, recorder observability.Recorder, retryThreshold int) *Service {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Service{
		client:   client,
		group:    group,
		logger:   logger,
		recorder: recorder,
		retries:  retryThreshold,
	}
}

// Group returns the service's hook group.
func (s *Service) Group() *resource.Group { return s.group }

func (s *Service) settings() HookSettings {
	return HookSettings{RetryThreshold: s.retries, Logger: s.logger, Recorder: s.recorder}
}

// Hook returns the group's hook for e, creating it on first use.
func (s *Service) Hook(e Entry) resource.View[api.Query] {
	return resource.GroupMember(s.group, e.Name, func() resource.View[api.Query] {
		return EntryHook(s.client, e, s.settings())
	})
}

// AllPages returns the group's hook that follows every page of e.
func (s *Service) AllPages(e Entry) (resource.View[api.Query], error) {
	if e.Kind != KindList {
		return nil, output.ErrUsage(fmt.Sprintf("--all needs a list resource; %s is a single object", e.Name))
	}
	return resource.GroupMember(s.group, e.Name+"/all", func() resource.View[api.Query] {
		return resource.Erase(NewAllHook(s.client, e, options[[]any](s.settings())))
	}), nil
}

// RoomAllocations returns the allocations hook for one hostel room.
func (s *Service) RoomAllocations(room int) *Hook[[]HostelAllocation] {
	kh := resource.GroupMember(s.group, "hostel-allocations/room", func() *resource.KeyedHook[int, api.Query, []HostelAllocation] {
		return NewRoomAllocationsHooks(s.client, options[[]HostelAllocation](s.settings()))
	})
	return kh.Get(room)
}

// StudentPayments returns the fee payments hook for one student.
func (s *Service) StudentPayments(student int) *Hook[[]FeePayment] {
	kh := resource.GroupMember(s.group, "fee-payments/student", func() *resource.KeyedHook[int, api.Query, []FeePayment] {
		return NewStudentPaymentsHooks(s.client, options[[]FeePayment](s.settings()))
	})
	return kh.Get(student)
}

// Show fetches one object of a list resource.
func (s *Service) Show(ctx context.Context, e Entry, id string) (json.RawMessage, error) {
	if e.Kind != KindList {
		return nil, output.ErrUsage(fmt.Sprintf("%s is a single object; use: campus list %s", e.Name, e.Name))
	}
	resp, err := s.client.Get(ctx, e.ItemPath(id), nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create posts body to a list resource.
func (s *Service) Create(ctx context.Context, e Entry, body any) (json.RawMessage, error) {
	if err := requireList(e, "create"); err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, e.Path, body)
	if err != nil {
		return nil, err
	}
	s.invalidate(e)
	return resp.Data, nil
}

// Update applies a partial update to one object.
func (s *Service) Update(ctx context.Context, e Entry, id string, body any) (json.RawMessage, error) {
	if err := requireList(e, "update"); err != nil {
		return nil, err
	}
	resp, err := s.client.Patch(ctx, e.ItemPath(id), body)
	if err != nil {
		return nil, err
	}
	s.invalidate(e)
	return resp.Data, nil
}

// Delete removes one object.
func (s *Service) Delete(ctx context.Context, e Entry, id string) error {
	if err := requireList(e, "delete"); err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, e.ItemPath(id)); err != nil {
		return err
	}
	s.invalidate(e)
	return nil
}

func requireList(e Entry, verb string) error {
	if e.Kind == KindList {
		return nil
	}
	return output.ErrUsage(fmt.Sprintf("cannot %s %s: it is a read-only summary", verb, e.Name))
}

// invalidate marks stale every hook in e's area, so a new payment also
// refreshes the fee summary.
func (s *Service) invalidate(e Entry) {
	for _, key := range s.group.Keys() {
		name, _, _ := strings.Cut(key, "/")
		other, err := Lookup(name)
		if err != nil || other.Area != e.Area {
			continue
		}
		if m := s.group.Member(key); m != nil {
			s.logger.Debug("invalidating hook", "key", key, "cause", e.Name)
			m.Invalidate()
		}
	}
}
