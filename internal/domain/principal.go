package domain

import "time"

// Role session duration bounds (seconds).
const (
	DefaultMaxSessionDuration = 3600
	MaxMaxSessionDuration     = 43200
	MinSessionDuration        = 900
)

// User is an IAM user principal.
type User struct {
	ID                  string
	AccountID           string
	Name                string // cased as supplied at creation
	Path                string
	PermissionsBoundary string // managed policy id, empty when unset
	CreatedAt           time.Time
}

// ARN returns the user's resource identifier.
func (u User) ARN() string {
	return "arn:aws:iam::" + u.AccountID + ":user" + pathOrSlash(u.Path) + u.Name
}

// Group is an IAM group principal. Groups hold users and policies but
// cannot authenticate or carry a permissions boundary.
type Group struct {
	ID        string
	AccountID string
	Name      string
	Path      string
	CreatedAt time.Time
}

// ARN returns the group's resource identifier.
func (g Group) ARN() string {
	return "arn:aws:iam::" + g.AccountID + ":group" + pathOrSlash(g.Path) + g.Name
}

// Role is an assumable IAM principal.
type Role struct {
	ID                  string
	AccountID           string
	Name                string
	Path                string
	Description         string
	AssumeRolePolicy    string // trust policy document
	MaxSessionDuration  int    // seconds
	PermissionsBoundary string // managed policy id, empty when unset
	CreatedAt           time.Time
}

// ARN returns the role's resource identifier.
func (r Role) ARN() string {
	return "arn:aws:iam::" + r.AccountID + ":role" + pathOrSlash(r.Path) + r.Name
}

// SessionARN returns the assumed-role session ARN for a session name.
func (r Role) SessionARN(sessionName string) string {
	return "arn:aws:sts::" + r.AccountID + ":assumed-role/" + r.Name + "/" + sessionName
}

func pathOrSlash(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// CreateUserRequest holds parameters for creating a user.
type CreateUserRequest struct {
	AccountID           string
	Name                string
	Path                string
	PermissionsBoundary string // managed policy id, optional
}

// Validate checks that the request is well-formed.
func (r *CreateUserRequest) Validate() error {
	if r.AccountID == "" {
		return ErrValidation("account id is required")
	}
	if err := ValidateResourceName("user", r.Name, MaxUserNameLen); err != nil {
		return err
	}
	return ValidatePath(r.Path)
}

// UpdateUserRequest renames or moves a user. Empty fields are left unchanged.
type UpdateUserRequest struct {
	NewName string
	NewPath string
}

// Validate checks that the request is well-formed.
func (r *UpdateUserRequest) Validate() error {
	if r.NewName == "" && r.NewPath == "" {
		return ErrValidation("nothing to update")
	}
	if r.NewName != "" {
		if err := ValidateResourceName("user", r.NewName, MaxUserNameLen); err != nil {
			return err
		}
	}
	if r.NewPath != "" {
		return ValidatePath(r.NewPath)
	}
	return nil
}

// CreateGroupRequest holds parameters for creating a group.
type CreateGroupRequest struct {
	AccountID string
	Name      string
	Path      string
}

// Validate checks that the request is well-formed.
func (r *CreateGroupRequest) Validate() error {
	if r.AccountID == "" {
		return ErrValidation("account id is required")
	}
	if err := ValidateResourceName("group", r.Name, MaxGroupNameLen); err != nil {
		return err
	}
	return ValidatePath(r.Path)
}

// UpdateGroupRequest renames or moves a group. Empty fields are left unchanged.
type UpdateGroupRequest struct {
	NewName string
	NewPath string
}

// Validate checks that the request is well-formed.
func (r *UpdateGroupRequest) Validate() error {
	if r.NewName == "" && r.NewPath == "" {
		return ErrValidation("nothing to update")
	}
	if r.NewName != "" {
		if err := ValidateResourceName("group", r.NewName, MaxGroupNameLen); err != nil {
			return err
		}
	}
	if r.NewPath != "" {
		return ValidatePath(r.NewPath)
	}
	return nil
}

// CreateRoleRequest holds parameters for creating a role.
type CreateRoleRequest struct {
	AccountID           string
	Name                string
	Path                string
	Description         string
	AssumeRolePolicy    string
	MaxSessionDuration  int // seconds; defaults to DefaultMaxSessionDuration
	PermissionsBoundary string
}

// Validate checks that the request is well-formed.
func (r *CreateRoleRequest) Validate() error {
	if r.AccountID == "" {
		return ErrValidation("account id is required")
	}
	if err := ValidateResourceName("role", r.Name, MaxRoleNameLen); err != nil {
		return err
	}
	if err := ValidatePath(r.Path); err != nil {
		return err
	}
	if r.AssumeRolePolicy == "" {
		return ErrValidation("assume role policy document is required")
	}
	if r.MaxSessionDuration == 0 {
		r.MaxSessionDuration = DefaultMaxSessionDuration
	}
	if r.MaxSessionDuration < MinSessionDuration || r.MaxSessionDuration > MaxMaxSessionDuration {
		return ErrValidation("max session duration must be between %d and %d seconds",
			MinSessionDuration, MaxMaxSessionDuration)
	}
	return nil
}

// UpdateRoleRequest changes a role's description or session cap.
type UpdateRoleRequest struct {
	Description        *string
	MaxSessionDuration *int
}

// Validate checks that the request is well-formed.
func (r *UpdateRoleRequest) Validate() error {
	if r.Description == nil && r.MaxSessionDuration == nil {
		return ErrValidation("nothing to update")
	}
	if r.MaxSessionDuration != nil {
		d := *r.MaxSessionDuration
		if d < MinSessionDuration || d > MaxMaxSessionDuration {
			return ErrValidation("max session duration must be between %d and %d seconds",
				MinSessionDuration, MaxMaxSessionDuration)
		}
	}
	return nil
}

// GroupMember links a user into a group.
type GroupMember struct {
	GroupID string
	UserID  string
}
