package roster

import "github.com/gabrielfriasw/srf-escolas-sub000/core"

// Student belongs to exactly one Class and is identified in it by its roll number.
type Student struct {
	ID            string `json:"id"`
	ClassID       string `json:"class_id"`
	Name          string `json:"name"`
	RollNumber    int    `json:"roll_number"`
	GuardianPhone string `json:"guardian_phone,omitempty"`
}

type Class struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Students []Student `json:"students,omitempty"` // ordered by roll number
}

// NewStudent is one roster import row. The class is created on the fly if it does not exist.
type NewStudent struct {
	ClassName     string `json:"class_name" validate:"required,notblank,max=100"`
	RollNumber    int    `json:"roll_number" validate:"required,min=1"`
	Name          string `json:"name" validate:"required,notblank,max=255"`
	GuardianPhone string `json:"guardian_phone" validate:"omitempty,max=32"`
}

func (ns *NewStudent) Clean() {
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.Name = core.CleanString(ns.Name)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)
}
