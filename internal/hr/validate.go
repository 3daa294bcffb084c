package hr

import (
	"fmt"
	"strings"

	"hr-platform/pkg/utils"
)

const phoneDigits = 10

func validateEmployee(in EmployeeInput) (EmployeeInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Department = strings.TrimSpace(in.Department)
	in.Position = strings.TrimSpace(in.Position)

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"email", in.Email},
		{"department", in.Department},
		{"position", in.Position},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return in, fmt.Errorf("%w: required: %s", ErrInvalidArgument, strings.Join(missing, ", "))
	}

	email, err := utils.NormalizeEmail(in.Email)
	if err != nil {
		return in, fmt.Errorf("%w: email is not valid", ErrInvalidArgument)
	}
	in.Email = email

	if in.Phone != "" {
		phone, ok := normalizePhone(in.Phone)
		if !ok {
			return in, fmt.Errorf("%w: phone must have %d digits", ErrInvalidArgument, phoneDigits)
		}
		in.Phone = phone
	}
	if in.Salary < 0 {
		return in, fmt.Errorf("%w: salary must not be negative", ErrInvalidArgument)
	}
	return in, nil
}

// normalizePhone accepts common separators and returns digits only.
func normalizePhone(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	return b.String(), b.Len() == phoneDigits
}

func validateTeam(in TeamInput) (TeamInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	in.Description = strings.TrimSpace(in.Description)
	in.TeamLeadID = strings.TrimSpace(in.TeamLeadID)
	if in.Name == "" || in.Department == "" {
		return in, fmt.Errorf("%w: name and department are required", ErrInvalidArgument)
	}
	return in, nil
}
