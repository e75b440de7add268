package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/whatsapp"
)

type (
	examAPI struct {
		svc        *exam.Service
		linker     *whatsapp.Linker
		recipients []string
	}

	statusRequest struct {
		Status exam.Status `json:"status"`
	}

	distributeRequest struct {
		ClassIDs []string `json:"class_ids"`
	}

	attendanceRequest struct {
		Records []exam.AttendanceRecord `json:"records"`
	}

	seatingRequest struct {
		Seats []exam.SeatPlacement `json:"seats"`
	}

	placeRequest struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}

	reportRequest struct {
		To []string `json:"to"`
	}

	seatingResponse struct {
		Rows    int            `json:"rows"`
		Columns int            `json:"columns"`
		Seats   []exam.Seating `json:"seats"`
	}

	absentResponse struct {
		Date     string                   `json:"date"`
		Students []whatsapp.AbsenceNotice `json:"students"`
	}

	reportResponse struct {
		Date   string `json:"date"`
		Absent int    `json:"absent"`
		Sent   int    `json:"sent"`
	}
)

func registerExamAPI(g *echo.Group, svc *exam.Service, linker *whatsapp.Linker, recipients []string) {
	api := examAPI{svc: svc, linker: linker, recipients: recipients}

	sg := g.Group("/sessions")
	sg.GET("", api.query)
	sg.POST("", api.create)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.PUT("/status", api.setStatus)
	dg.POST("/distribute", api.distribute)
	dg.PATCH("/allocations/:student_id", api.updateAllocation)

	dg.GET("/attendance/:date", api.getAttendance)
	dg.PUT("/attendance/:date", api.takeAttendance)
	dg.POST("/attendance/:date/all-present", api.markAllPresent)
	dg.GET("/attendance/:date/absent", api.absent)
	dg.POST("/attendance/:date/report", api.report)

	dg.GET("/seating", api.getSeating)
	dg.PUT("/seating", api.updateSeating)
	dg.PUT("/seating/:student_id", api.placeStudent)
}

func (api *examAPI) query(ctx echo.Context) error {
	var filter exam.SessionFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to exam.SessionFilter")
	}
	var ordering Ordering
	ordering.Bind(ctx)

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *examAPI) create(ctx echo.Context) error {
	var ns exam.NewSession
	if err := ctx.Bind(&ns); err != nil {
		return errors.Wrap(err, "binding to exam.NewSession")
	}

	details, err := api.svc.CreateAndDistribute(ctx.Request().Context(), ns)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, details)
}

func (api *examAPI) retrieve(ctx echo.Context) error {
	details, err := api.svc.GetSessionDetails(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, details)
}

func (api *examAPI) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteSession(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examAPI) setStatus(ctx echo.Context) error {
	var req statusRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to statusRequest")
	}

	sess, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *examAPI) distribute(ctx echo.Context) error {
	var req distributeRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to distributeRequest")
	}

	allocs, err := api.svc.DistributeStudents(ctx.Request().Context(), ctx.Param("id"), req.ClassIDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, allocs)
}

func (api *examAPI) updateAllocation(ctx echo.Context) error {
	var upd exam.AllocationUpdate
	if err := ctx.Bind(&upd); err != nil {
		return errors.Wrap(err, "binding to exam.AllocationUpdate")
	}

	alloc, err := api.svc.UpdateStudentAllocation(ctx.Request().Context(), ctx.Param("id"), ctx.Param("student_id"), upd)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, alloc)
}

// Attendance

func (api *examAPI) getAttendance(ctx echo.Context) error {
	records, err := api.svc.GetAttendance(ctx.Request().Context(), ctx.Param("id"), ctx.Param("date"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *examAPI) takeAttendance(ctx echo.Context) error {
	var req attendanceRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to attendanceRequest")
	}

	c := ctx.Request().Context()
	sessionID, date := ctx.Param("id"), ctx.Param("date")
	if err := api.svc.TakeAttendance(c, sessionID, date, req.Records); err != nil {
		return err
	}
	records, err := api.svc.GetAttendance(c, sessionID, date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *examAPI) markAllPresent(ctx echo.Context) error {
	c := ctx.Request().Context()
	sessionID, date := ctx.Param("id"), ctx.Param("date")
	if err := api.svc.MarkAllPresent(c, sessionID, date); err != nil {
		return err
	}
	records, err := api.svc.GetAttendance(c, sessionID, date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *examAPI) absent(ctx echo.Context) error {
	c := ctx.Request().Context()
	sessionID, date := ctx.Param("id"), ctx.Param("date")

	sess, err := api.svc.GetSession(c, sessionID)
	if err != nil {
		return err
	}
	absent, err := api.svc.AbsentStudents(c, sessionID, date)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, absentResponse{
		Date:     date,
		Students: api.linker.AbsenceNotices(sess.Name, date, absent),
	})
}

func (api *examAPI) report(ctx echo.Context) error {
	var req reportRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to reportRequest")
	}
	if len(req.To) == 0 {
		req.To = api.recipients
	}

	to := make([]mail.Address, 0, len(req.To))
	for _, addr := range req.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return core.NewValidationError(
				errors.Wrapf(err, "parsing recipient %q", addr),
				core.FieldError{Field: "to", Error: "invalid email address: " + addr},
			)
		}
		to = append(to, *parsed)
	}

	date := ctx.Param("date")
	absent, err := api.svc.SendAbsenceReport(ctx.Request().Context(), ctx.Param("id"), date, to)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusAccepted, reportResponse{Date: date, Absent: len(absent), Sent: len(to)})
}

// Seating

func (api *examAPI) seating(ctx echo.Context, seats []exam.Seating) error {
	grid := api.svc.Grid()
	if seats == nil {
		seats = []exam.Seating{}
	}
	return ctx.JSON(http.StatusOK, seatingResponse{Rows: grid.Rows, Columns: grid.Columns, Seats: seats})
}

func (api *examAPI) getSeating(ctx echo.Context) error {
	seats, err := api.svc.GetSeating(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return api.seating(ctx, seats)
}

func (api *examAPI) updateSeating(ctx echo.Context) error {
	var req seatingRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to seatingRequest")
	}

	seats, err := api.svc.UpdateSeating(ctx.Request().Context(), ctx.Param("id"), req.Seats)
	if err != nil {
		return err
	}
	return api.seating(ctx, seats)
}

func (api *examAPI) placeStudent(ctx echo.Context) error {
	var req placeRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to placeRequest")
	}

	var fldErrs []core.FieldError
	if req.X == nil {
		fldErrs = append(fldErrs, core.FieldError{Field: "x", Error: "x is a required field"})
	}
	if req.Y == nil {
		fldErrs = append(fldErrs, core.FieldError{Field: "y", Error: "y is a required field"})
	}
	if fldErrs != nil {
		return core.NewValidationError(errors.New("invalid seat"), fldErrs...)
	}

	seats, err := api.svc.PlaceStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("student_id"), *req.X, *req.Y)
	if err != nil {
		return err
	}
	return api.seating(ctx, seats)
}
