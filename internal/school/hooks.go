package school

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/observability"
	"github.com/campusdesk/campus/internal/resource"
)

// Hook is a fetch hook keyed by query parameters.
type Hook[T any] = resource.Hook[api.Query, T]

func listHook[T any](c *api.Client, name string, opts resource.Options[[]T]) *Hook[[]T] {
	e := MustLookup(name)
	if opts.Key == "" {
		opts.Key = e.Name
	}
	return resource.NewSource(api.List[T](c, e.Path), opts)
}

func objectHook[T any](c *api.Client, name string, opts resource.Options[T]) *Hook[T] {
	e := MustLookup(name)
	if opts.Key == "" {
		opts.Key = e.Name
	}
	return resource.NewSource(api.Object[T](c, e.Path), opts)
}

func NewBranchesHook(c *api.Client, opts resource.Options[[]Branch]) *Hook[[]Branch] {
	return listHook(c, "branches", opts)
}

func NewAcademicYearsHook(c *api.Client, opts resource.Options[[]AcademicYear]) *Hook[[]AcademicYear] {
	return listHook(c, "academic-years", opts)
}

func NewClassesHook(c *api.Client, opts resource.Options[[]Class]) *Hook[[]Class] {
	return listHook(c, "classes", opts)
}

func NewStudentsHook(c *api.Client, opts resource.Options[[]Student]) *Hook[[]Student] {
	return listHook(c, "students", opts)
}

func NewExamsHook(c *api.Client, opts resource.Options[[]Exam]) *Hook[[]Exam] {
	return listHook(c, "exams", opts)
}

func NewFeeSummaryHook(c *api.Client, opts resource.Options[FeeSummary]) *Hook[FeeSummary] {
	return objectHook(c, "fee-summary", opts)
}

func NewFeePaymentsHook(c *api.Client, opts resource.Options[[]FeePayment]) *Hook[[]FeePayment] {
	return listHook(c, "fee-payments", opts)
}

func NewInventoryHook(c *api.Client, opts resource.Options[[]InventoryItem]) *Hook[[]InventoryItem] {
	return listHook(c, "inventory", opts)
}

func NewHostelRoomsHook(c *api.Client, opts resource.Options[[]HostelRoom]) *Hook[[]HostelRoom] {
	return listHook(c, "hostel-rooms", opts)
}

func NewHostelAllocationsHook(c *api.Client, opts resource.Options[[]HostelAllocation]) *Hook[[]HostelAllocation] {
	return listHook(c, "hostel-allocations", opts)
}

func NewTransportRoutesHook(c *api.Client, opts resource.Options[[]TransportRoute]) *Hook[[]TransportRoute] {
	return listHook(c, "transport-routes", opts)
}

func NewVehiclesHook(c *api.Client, opts resource.Options[[]Vehicle]) *Hook[[]Vehicle] {
	return listHook(c, "vehicles", opts)
}

func NewRewardsHook(c *api.Client, opts resource.Options[[]Reward]) *Hook[[]Reward] {
	return listHook(c, "rewards", opts)
}

func NewTasksHook(c *api.Client, opts resource.Options[[]Task]) *Hook[[]Task] {
	return listHook(c, "tasks", opts)
}

// NewRoomAllocationsHooks returns allocations hooks keyed by room ID. Each
// room's hook filters by room and keeps its own retry state.
func NewRoomAllocationsHooks(c *api.Client, opts resource.Options[[]HostelAllocation]) *resource.KeyedHook[int, api.Query, []HostelAllocation] {
	return scoped(c, "hostel-allocations", "room", opts)
}

// NewStudentPaymentsHooks returns fee payment hooks keyed by student ID.
func NewStudentPaymentsHooks(c *api.Client, opts resource.Options[[]FeePayment]) *resource.KeyedHook[int, api.Query, []FeePayment] {
	return scoped(c, "fee-payments", "student", opts)
}

func scoped[T any](c *api.Client, name, param string, opts resource.Options[[]T]) *resource.KeyedHook[int, api.Query, []T] {
	e := MustLookup(name)
	list := api.List[T](c, e.Path)
	return resource.NewKeyedHook(func(id int) *Hook[[]T] {
		o := opts
		o.Key = e.Name + "/" + param + "=" + strconv.Itoa(id)
		var src resource.Source[api.Query, []T] = func(ctx context.Context, q api.Query) ([]T, *resource.PageMeta, error) {
			return list(ctx, q.With(param, strconv.Itoa(id)))
		}
		return resource.NewSource(src, o)
	})
}

// HookSettings are the options a service applies to every hook it creates.
type HookSettings struct {
	RetryThreshold int
	Logger         *slog.Logger
	Recorder       observability.Recorder
}

func options[T any](s HookSettings) resource.Options[T] {
	return resource.Options[T]{
		RetryThreshold: s.RetryThreshold,
		Logger:         s.Logger,
		Recorder:       s.Recorder,
	}
}

func erase[T any](build func(*api.Client, resource.Options[T]) *Hook[T]) func(*api.Client, HookSettings) resource.View[api.Query] {
	return func(c *api.Client, s HookSettings) resource.View[api.Query] {
		return resource.Erase(build(c, options[T](s)))
	}
}

var namedHooks = map[string]func(*api.Client, HookSettings) resource.View[api.Query]{
	"branches":           erase(NewBranchesHook),
	"academic-years":     erase(NewAcademicYearsHook),
	"classes":            erase(NewClassesHook),
	"students":           erase(NewStudentsHook),
	"exams":              erase(NewExamsHook),
	"fee-summary":        erase(NewFeeSummaryHook),
	"fee-payments":       erase(NewFeePaymentsHook),
	"inventory":          erase(NewInventoryHook),
	"hostel-rooms":       erase(NewHostelRoomsHook),
	"hostel-allocations": erase(NewHostelAllocationsHook),
	"transport-routes":   erase(NewTransportRoutesHook),
	"vehicles":           erase(NewVehiclesHook),
	"rewards":            erase(NewRewardsHook),
	"tasks":              erase(NewTasksHook),
}

// EntryHook returns the named hook for e, or an untyped one for entries
// without a model.
func EntryHook(c *api.Client, e Entry, s HookSettings) resource.View[api.Query] {
	if build, ok := namedHooks[e.Name]; ok {
		return build(c, s)
	}
	return resource.Erase(NewEntryHook(c, e, options[any](s)))
}

// NewEntryHook builds an untyped hook for any catalog entry. List entries
// decode to []any, object entries to map[string]any.
func NewEntryHook(c *api.Client, e Entry, opts resource.Options[any]) *Hook[any] {
	if opts.Key == "" {
		opts.Key = e.Name
	}
	return resource.NewSource(api.Object[any](c, e.Path), opts)
}

// NewAllHook returns a hook that walks every page of a list entry.
func NewAllHook(c *api.Client, e Entry, opts resource.Options[[]any]) *Hook[[]any] {
	if opts.Key == "" {
		opts.Key = e.Name + "/all"
	}
	return resource.NewSource(api.All[any](c, e.Path), opts)
}
