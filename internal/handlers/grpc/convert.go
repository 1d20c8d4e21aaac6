package grpc

import (
	"userhub/internal/core/domain"
	"userhub/pkg/userpb"
)

func toProtoUser(u *domain.User) *userpb.User {
	if u == nil {
		return nil
	}
	return &userpb.User{
		Id:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toProtoNotification(n domain.Notification) *userpb.UserNotification {
	user := n.User
	return &userpb.UserNotification{
		Type:      string(n.Type),
		User:      toProtoUser(&user),
		Timestamp: n.Timestamp,
		Message:   n.Message,
	}
}

func toProtoBatchResult(r *domain.BatchResult) *userpb.BatchCreateResult {
	ids := make([]string, 0, len(r.CreatedIDs))
	for _, id := range r.CreatedIDs {
		ids = append(ids, string(id))
	}
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return &userpb.BatchCreateResult{
		CreatedCount: int32(r.CreatedCount),
		CreatedIds:   ids,
		Errors:       errs,
	}
}

func parseNotificationTypes(names []string) ([]domain.NotificationType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	types := make([]domain.NotificationType, 0, len(names))
	for _, name := range names {
		t, err := domain.ParseNotificationType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
