// Package school defines the school API's resources: typed models, the
// embedded resource catalog, named fetch hooks and CRUD mutations.
package school

import (
	"encoding/json"
	"fmt"
)

// Branch is a school campus.
type Branch struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
	City string `json:"city,omitempty"`
}

// AcademicYear is a teaching year.
type AcademicYear struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	IsCurrent bool   `json:"is_current"`
}

type Class struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Section      string `json:"section,omitempty"`
	TeacherName  string `json:"teacher_name,omitempty"`
	StudentCount int    `json:"student_count"`
}

type Student struct {
	ID         int    `json:"id"`
	RollNumber string `json:"roll_number"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ClassID    int    `json:"class_id,omitempty"`
	ClassName  string `json:"class_name,omitempty"`
	BranchID   int    `json:"branch,omitempty"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type Exam struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ClassName string `json:"class_name,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// FeeSummary is the finance totals object for a branch and year.
type FeeSummary struct {
	TotalDue       float64 `json:"total_due"`
	TotalCollected float64 `json:"total_collected"`
	TotalPending   float64 `json:"total_pending"`
	StudentCount   int     `json:"student_count"`
	DefaulterCount int     `json:"defaulter_count"`
}

// Line renders the totals on one line.
func (f FeeSummary) Line() string {
	return fmt.Sprintf("%.2f of %.2f collected, %d defaulters", f.TotalCollected, f.TotalDue, f.DefaulterCount)
}

type FeePayment struct {
	ID          int     `json:"id"`
	StudentID   int     `json:"student"`
	StudentName string  `json:"student_name,omitempty"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method,omitempty"`
	PaidOn      string  `json:"paid_on,omitempty"`
}

type InventoryItem struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type HostelRoom struct {
	ID       int    `json:"id"`
	Number   string `json:"number"`
	Block    string `json:"block,omitempty"`
	Capacity int    `json:"capacity"`
	Occupied int    `json:"occupied"`
}

// Vacancies returns the free beds in the room.
func (r HostelRoom) Vacancies() int {
	if r.Occupied >= r.Capacity {
		return 0
	}
	return r.Capacity - r.Occupied
}

type HostelAllocation struct {
	ID          int    `json:"id"`
	RoomID      int    `json:"room"`
	RoomNumber  string `json:"room_number,omitempty"`
	StudentID   int    `json:"student"`
	StudentName string `json:"student_name,omitempty"`
	AllocatedOn string `json:"allocated_on,omitempty"`
}

type TransportRoute struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	StartPoint string  `json:"start_point,omitempty"`
	EndPoint   string  `json:"end_point,omitempty"`
	Fare       float64 `json:"fare"`
}

type Vehicle struct {
	ID                 int    `json:"id"`
	RegistrationNumber string `json:"registration_number"`
	Capacity           int    `json:"capacity"`
	DriverName         string `json:"driver_name,omitempty"`
	RouteName          string `json:"route_name,omitempty"`
}

type Reward struct {
	ID          int    `json:"id"`
	StudentName string `json:"student_name,omitempty"`
	Title       string `json:"title"`
	Points      int    `json:"points"`
	AwardedOn   string `json:"awarded_on,omitempty"`
}

type Task struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	AssigneeName string `json:"assignee_name,omitempty"`
	Status       string `json:"status"`
	DueDate      string `json:"due_date,omitempty"`
}

// Record is an untyped API object, as returned for resources without a
// dedicated model.
type Record = map[string]json.RawMessage
