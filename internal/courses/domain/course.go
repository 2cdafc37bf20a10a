// Package domain holds the course model.
package domain

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrDuplicateCode  = errors.New("course code already exists")
	ErrCourseNotFound = errors.New("course not found")
)

// Course is a class session location. Code doubles as the document id.
type Course struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Instructor   string  `json:"instructor"`
	Semester     string  `json:"semester"`
	Description  string  `json:"description"`
	LocationName string  `json:"locationName"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Students     int     `json:"students" validate:"gte=0"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// Data encodes c as a course document.
func (c Course) Data() map[string]any {
	data := map[string]any{
		"code":         c.Code,
		"name":         c.Name,
		"instructor":   c.Instructor,
		"semester":     c.Semester,
		"description":  c.Description,
		"locationName": c.LocationName,
		"latitude":     c.Latitude,
		"longitude":    c.Longitude,
		"students":     c.Students,
	}
	if c.CreatedAt != "" {
		data["createdAt"] = c.CreatedAt
	}
	if c.UpdatedAt != "" {
		data["updatedAt"] = c.UpdatedAt
	}
	return data
}

// FromData decodes a course document stored under id.
func FromData(id string, data map[string]any) Course {
	c := Course{
		Code:         str(data, "code"),
		Name:         str(data, "name"),
		Instructor:   str(data, "instructor"),
		Semester:     str(data, "semester"),
		Description:  str(data, "description"),
		LocationName: str(data, "locationName"),
		Latitude:     num(data, "latitude"),
		Longitude:    num(data, "longitude"),
		Students:     int(math.Round(num(data, "students"))),
		CreatedAt:    str(data, "createdAt"),
		UpdatedAt:    str(data, "updatedAt"),
	}
	if c.Code == "" {
		c.Code = id
	}
	return c
}

// Patch is a partial course update; nil fields are left untouched. The code
// cannot change.
type Patch struct {
	Name         *string  `json:"name" validate:"omitempty,min=1"`
	Instructor   *string  `json:"instructor"`
	Semester     *string  `json:"semester"`
	Description  *string  `json:"description"`
	LocationName *string  `json:"locationName"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Students     *int     `json:"students" validate:"omitempty,gte=0"`
}

// Data returns the fields set in p.
func (p Patch) Data() map[string]any {
	data := make(map[string]any)
	setStr := func(k string, v *string) {
		if v != nil {
			data[k] = strings.TrimSpace(*v)
		}
	}
	setStr("name", p.Name)
	setStr("instructor", p.Instructor)
	setStr("semester", p.Semester)
	setStr("description", p.Description)
	setStr("locationName", p.LocationName)
	if p.Latitude != nil {
		data["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		data["longitude"] = *p.Longitude
	}
	if p.Students != nil {
		data["students"] = *p.Students
	}
	return data
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func num(data map[string]any, key string) float64 {
	switch n := data[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
