package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TimeLayout is the timestamp format written to profile and course documents.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in TimeLayout, in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Role is one of the three canonical account roles.
type Role string

const (
	RoleStudent Role = "Student"
	RoleFaculty Role = "Faculty"
	RoleAdmin   Role = "Admin"
)

// ParseRole canonicalizes any spelling of admin or faculty; everything else,
// including the empty string, is a student.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "faculty":
		return RoleFaculty
	default:
		return RoleStudent
	}
}

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanBasic    Plan = "basic"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// FreeUserLimit is the number of users a free account may manage.
const FreeUserLimit = 5

// ParsePlan maps unknown or empty input to PlanFree.
func ParsePlan(s string) Plan {
	switch p := Plan(strings.ToLower(strings.TrimSpace(s))); p {
	case PlanBasic, PlanStandard, PlanPremium:
		return p
	default:
		return PlanFree
	}
}

// AllowsMoreUsers reports whether an account on p managing count users may
// add another.
func (p Plan) AllowsMoreUsers(count int) bool {
	return p != PlanFree || count < FreeUserLimit
}

// Document field names of a user profile.
const (
	FieldUID       = "uid"
	FieldEmail     = "email"
	FieldRole      = "role"
	FieldName      = "name"
	FieldCourse    = "course"
	FieldPlan      = "plan"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// UserProfile is the stored profile of an account. Fields outside the known
// set are kept verbatim in Extra.
type UserProfile struct {
	ID        string
	Email     string
	Role      Role
	Name      string
	Course    string
	Plan      Plan
	CreatedAt string
	UpdatedAt string
	Extra     map[string]any
}

// NewProfile builds the profile written at sign-up. extra may carry name,
// course, plan and any additional attributes; role is canonicalized after
// extra is applied, so extra cannot store a non-canonical role.
func NewProfile(uid, email, role string, extra map[string]any, now time.Time) *UserProfile {
	data := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		data[k] = v
	}
	if role == "" {
		role = stringField(extra, FieldRole)
	}
	data[FieldUID] = uid
	data[FieldEmail] = email
	data[FieldRole] = string(ParseRole(role))
	data[FieldCreatedAt] = Timestamp(now)

	p := ProfileFromData(uid, data)
	if _, ok := extra[FieldPlan]; !ok {
		p.Plan = ""
	}
	return p
}

// ProfileFromData decodes a profile document. The document id wins over any
// uid field in data.
func ProfileFromData(id string, data map[string]any) *UserProfile {
	p := &UserProfile{
		ID:        id,
		Email:     stringField(data, FieldEmail),
		Role:      ParseRole(stringField(data, FieldRole)),
		Name:      stringField(data, FieldName),
		Course:    stringField(data, FieldCourse),
		Plan:      ParsePlan(stringField(data, FieldPlan)),
		CreatedAt: stringField(data, FieldCreatedAt),
		UpdatedAt: stringField(data, FieldUpdatedAt),
	}
	if p.ID == "" {
		p.ID = stringField(data, FieldUID)
	}
	if p.Name == "" {
		p.Name = stringField(data, "fullname")
	}
	for k, v := range data {
		if isKnownField(k) {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return p
}

// Data encodes p as a profile document. Empty known fields are omitted.
func (p *UserProfile) Data() map[string]any {
	data := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		data[k] = v
	}
	put := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	put(FieldUID, p.ID)
	put(FieldEmail, p.Email)
	put(FieldRole, string(p.Role))
	put(FieldName, p.Name)
	put(FieldCourse, p.Course)
	put(FieldPlan, string(p.Plan))
	put(FieldCreatedAt, p.CreatedAt)
	put(FieldUpdatedAt, p.UpdatedAt)
	return data
}

// EffectivePlan is p's plan, PlanFree when unset.
func (p *UserProfile) EffectivePlan() Plan {
	return ParsePlan(string(p.Plan))
}

// Clone returns a deep enough copy for callers to mutate.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Extra != nil {
		c.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// MarshalJSON writes the document form plus "id".
func (p UserProfile) MarshalJSON() ([]byte, error) {
	data := p.Data()
	data["id"] = p.ID
	return json.Marshal(data)
}

func (p *UserProfile) UnmarshalJSON(b []byte) error {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	id := stringField(data, "id")
	delete(data, "id")
	*p = *ProfileFromData(id, data)
	return nil
}

// ProfilePatch is a merge patch for a profile document. Role and plan values
// are canonicalized and identity fields are dropped.
func ProfilePatch(patch map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		switch k {
		case "id", FieldUID, FieldCreatedAt:
			continue
		case FieldRole:
			s, _ := v.(string)
			out[k] = string(ParseRole(s))
		case FieldPlan:
			s, _ := v.(string)
			out[k] = string(ParsePlan(s))
		default:
			out[k] = v
		}
	}
	out[FieldUpdatedAt] = Timestamp(now)
	return out
}

func isKnownField(k string) bool {
	switch k {
	case FieldUID, FieldEmail, FieldRole, FieldName, FieldCourse, FieldPlan,
		FieldCreatedAt, FieldUpdatedAt:
		return true
	}
	return false
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
