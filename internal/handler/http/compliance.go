package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/workentry"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type ComplianceHandler interface {
	// Attendances
	ProcessAttendance(w http.ResponseWriter, r *http.Request)
	ListWorkEntries(w http.ResponseWriter, r *http.Request)

	// Employees
	RecomputeEmployee(w http.ResponseWriter, r *http.Request)
	ListPenalties(w http.ResponseWriter, r *http.Request)

	// Leaves
	LeaveChanged(w http.ResponseWriter, r *http.Request)
}

type complianceHandlerImpl struct {
	complianceService compliance.Service
	queue             compliance.Dispatcher
	attendanceRepo    attendance.AttendanceRepository
	employeeRepo      employee.EmployeeRepository
	penaltyRepo       leave.PenaltyRepository
	workEntryRepo     workentry.WorkEntryRepository
}

func NewComplianceHandler(
	complianceService compliance.Service,
	queue compliance.Dispatcher,
	attendanceRepo attendance.AttendanceRepository,
	employeeRepo employee.EmployeeRepository,
	penaltyRepo leave.PenaltyRepository,
	workEntryRepo workentry.WorkEntryRepository,
) ComplianceHandler {
	return &complianceHandlerImpl{
		complianceService: complianceService,
		queue:             queue,
		attendanceRepo:    attendanceRepo,
		employeeRepo:      employeeRepo,
		penaltyRepo:       penaltyRepo,
		workEntryRepo:     workEntryRepo,
	}
}

// ProcessAttendance runs the pipeline for an attendance and the other
// attendances of its employee on the same dates.
func (h *complianceHandlerImpl) ProcessAttendance(w http.ResponseWriter, r *http.Request) {
	a, err := h.scopedAttendance(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.complianceService.ProcessAttendance(r.Context(), a.ID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *complianceHandlerImpl) ListWorkEntries(w http.ResponseWriter, r *http.Request) {
	a, err := h.scopedAttendance(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	entries, err := h.workEntryRepo.FindByAttendance(r.Context(), a.ID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp := make([]compliance.WorkEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, compliance.NewWorkEntryResponse(e))
	}
	response.Success(w, resp)
}

func (h *complianceHandlerImpl) RecomputeEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.scopedEmployee(r, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req compliance.RecomputeRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	from, to := req.Window()
	result, err := h.complianceService.RecomputeRange(r.Context(), emp.ID, from, to)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *complianceHandlerImpl) ListPenalties(w http.ResponseWriter, r *http.Request) {
	emp, err := h.scopedEmployee(r, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, ok := validator.IsValidDate(dateStr)
	if !ok {
		response.HandleError(w, validator.ValidationErrors{{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		}})
		return
	}

	penalties, err := h.penaltyRepo.FindActivePenalties(r.Context(), emp.ID, date)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp := make([]compliance.PenaltyResponse, 0, len(penalties))
	for _, p := range penalties {
		resp = append(resp, compliance.NewPenaltyResponse(p))
	}
	response.Success(w, resp)
}

// LeaveChanged queues a recompute of the days a leave touches. The caller
// gets 202 without waiting for the pipeline.
func (h *complianceHandlerImpl) LeaveChanged(w http.ResponseWriter, r *http.Request) {
	var req compliance.LeaveChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	emp, err := h.scopedEmployee(r, req.EmployeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	change := req.ToLeaveChange()
	if err := h.queue.Dispatch(r.Context(), change.Request()); err != nil {
		response.HandleError(w, err)
		return
	}

	slog.Info("Leave change queued", "employee_id", emp.ID, "leave_id", change.LeaveID)
	response.Accepted(w, "Recompute queued", compliance.QueuedResponse{
		Queued:     true,
		EmployeeID: emp.ID,
	})
}

func (h *complianceHandlerImpl) scopedAttendance(r *http.Request) (attendance.Attendance, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return attendance.Attendance{}, auth.ErrInvalidToken
	}

	a, err := h.attendanceRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return attendance.Attendance{}, err
	}
	if a.CompanyID != claims.CompanyID {
		return attendance.Attendance{}, fmt.Errorf("%w: attendance %s", auth.ErrCompanyScope, a.ID)
	}
	return a, nil
}

func (h *complianceHandlerImpl) scopedEmployee(r *http.Request, employeeID string) (employee.Employee, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return employee.Employee{}, auth.ErrInvalidToken
	}

	emp, err := h.employeeRepo.GetByID(r.Context(), employeeID)
	if err != nil {
		return employee.Employee{}, err
	}
	if emp.CompanyID != claims.CompanyID {
		return employee.Employee{}, fmt.Errorf("%w: employee %s", auth.ErrCompanyScope, emp.ID)
	}
	return emp, nil
}
