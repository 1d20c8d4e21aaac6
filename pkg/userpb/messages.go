// Package userpb holds the wire contract of the userhub.v1.UserService
// gRPC service. Messages travel with the JSON codec registered in codec.go.
package userpb

import "time"

type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (x *User) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

func (x *User) GetName() string {
	if x != nil {
		return x.Name
	}
	return ""
}

func (x *User) GetEmail() string {
	if x != nil {
		return x.Email
	}
	return ""
}

func (x *User) GetCreatedAt() time.Time {
	if x != nil {
		return x.CreatedAt
	}
	return time.Time{}
}

func (x *User) GetUpdatedAt() time.Time {
	if x != nil {
		return x.UpdatedAt
	}
	return time.Time{}
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (x *CreateUserRequest) GetName() string {
	if x != nil {
		return x.Name
	}
	return ""
}

func (x *CreateUserRequest) GetEmail() string {
	if x != nil {
		return x.Email
	}
	return ""
}

type GetUserRequest struct {
	Id string `json:"id"`
}

func (x *GetUserRequest) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

type UpdateUserRequest struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (x *UpdateUserRequest) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

func (x *UpdateUserRequest) GetName() string {
	if x != nil {
		return x.Name
	}
	return ""
}

func (x *UpdateUserRequest) GetEmail() string {
	if x != nil {
		return x.Email
	}
	return ""
}

type DeleteUserRequest struct {
	Id string `json:"id"`
}

func (x *DeleteUserRequest) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

type DeleteUserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (x *DeleteUserResponse) GetSuccess() bool {
	if x != nil {
		return x.Success
	}
	return false
}

func (x *DeleteUserResponse) GetMessage() string {
	if x != nil {
		return x.Message
	}
	return ""
}

type ListUsersRequest struct{}

type BatchCreateResult struct {
	CreatedCount int32    `json:"created_count"`
	CreatedIds   []string `json:"created_ids"`
	Errors       []string `json:"errors"`
}

func (x *BatchCreateResult) GetCreatedCount() int32 {
	if x != nil {
		return x.CreatedCount
	}
	return 0
}

func (x *BatchCreateResult) GetCreatedIds() []string {
	if x != nil {
		return x.CreatedIds
	}
	return nil
}

func (x *BatchCreateResult) GetErrors() []string {
	if x != nil {
		return x.Errors
	}
	return nil
}

type SubscribeRequest struct {
	ClientId          string   `json:"client_id"`
	NotificationTypes []string `json:"notification_types,omitempty"`
}

func (x *SubscribeRequest) GetClientId() string {
	if x != nil {
		return x.ClientId
	}
	return ""
}

func (x *SubscribeRequest) GetNotificationTypes() []string {
	if x != nil {
		return x.NotificationTypes
	}
	return nil
}

type UserNotification struct {
	Type      string    `json:"type"`
	User      *User     `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func (x *UserNotification) GetType() string {
	if x != nil {
		return x.Type
	}
	return ""
}

func (x *UserNotification) GetUser() *User {
	if x != nil {
		return x.User
	}
	return nil
}

func (x *UserNotification) GetTimestamp() time.Time {
	if x != nil {
		return x.Timestamp
	}
	return time.Time{}
}

func (x *UserNotification) GetMessage() string {
	if x != nil {
		return x.Message
	}
	return ""
}
