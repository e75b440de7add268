package exam

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

const absenceReportTemplate = "absent_report"

var ErrNoRecipients = core.NewValidationError(
	errors.New("no report recipients"),
	core.FieldError{Field: "to", Error: "at least one recipient is required"},
)

type absenceReportData struct {
	SessionName string
	Date        string
	Absent      []Allocation
}

// SendAbsenceReport e-mails the list of students absent on date to the recipients.
func (svc *Service) SendAbsenceReport(ctx context.Context, sessionID, date string, to []mail.Address) ([]Allocation, error) {
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	if svc.mailer == nil {
		return nil, errors.New("no email service configured")
	}

	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	absent, err := svc.AbsentStudents(ctx, sessionID, date)
	if err != nil {
		return nil, err
	}

	svc.mailer.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "Absence report: " + sess.Name + " (" + date + ")",
		TemplateName: absenceReportTemplate,
		TemplateData: absenceReportData{SessionName: sess.Name, Date: date, Absent: absent},
	})
	return absent, nil
}
