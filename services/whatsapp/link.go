// Package whatsapp builds wa.me deep links used to notify guardians.
package whatsapp

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
)

const (
	baseURL = "https://wa.me/"

	minDigits   = 8
	localDigits = 11 // area code + subscriber number, without country code
)

var ErrInvalidPhone = errors.New("invalid phone number")

type Linker struct {
	countryCode string
}

// NewLinker returns a Linker prepending countryCode (digits only, e.g. "55") to local numbers.
func NewLinker(countryCode string) *Linker {
	return &Linker{countryCode: digits(countryCode)}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone keeps the digits of phone, adding the country code to local numbers.
func (l *Linker) NormalizePhone(phone string) (string, error) {
	d := strings.TrimPrefix(digits(phone), "00")
	if len(d) < minDigits {
		return "", ErrInvalidPhone
	}
	if len(d) <= localDigits && !strings.HasPrefix(strings.TrimSpace(phone), "+") {
		d = l.countryCode + d
	}
	return d, nil
}

// Link returns the wa.me link opening a chat with phone, prefilled with text.
func (l *Linker) Link(phone, text string) (string, error) {
	number, err := l.NormalizePhone(phone)
	if err != nil {
		return "", errors.Wrapf(err, "phone %q", phone)
	}
	link := baseURL + number
	if text != "" {
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return link, nil
}

// AbsenceMessage is the text sent to the guardian of an absent student.
func AbsenceMessage(studentName, sessionName, date string) string {
	if d, err := time.Parse(exam.DateLayout, date); err == nil {
		date = d.Format("02/01/2006")
	}
	return fmt.Sprintf(
		"Olá! Informamos que o(a) aluno(a) %s não compareceu à avaliação \"%s\" no dia %s.",
		studentName, sessionName, date,
	)
}

// AbsenceNotice is an absent student with the link notifying its guardian.
// Link is empty when the guardian phone is missing or invalid.
type AbsenceNotice struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	ClassName   string `json:"class_name"`
	RollNumber  int    `json:"roll_number"`
	Phone       string `json:"phone,omitempty"`
	Link        string `json:"link,omitempty"`
}

func (l *Linker) AbsenceNotices(sessionName, date string, absent []exam.Allocation) []AbsenceNotice {
	notices := make([]AbsenceNotice, 0, len(absent))
	for _, a := range absent {
		n := AbsenceNotice{
			StudentID:   a.StudentID,
			StudentName: a.StudentName,
			ClassName:   a.ClassName,
			RollNumber:  a.RollNumber,
			Phone:       a.GuardianPhone,
		}
		if a.GuardianPhone != "" {
			n.Link, _ = l.Link(a.GuardianPhone, AbsenceMessage(a.StudentName, sessionName, date))
		}
		notices = append(notices, n)
	}
	return notices
}
