package handler

import (
	"github.com/savsata/gundem/internal/admin"
	"github.com/savsata/gundem/internal/auth"
	"github.com/savsata/gundem/internal/comment"
	"github.com/savsata/gundem/internal/message"
	"github.com/savsata/gundem/internal/middleware"
	"github.com/savsata/gundem/internal/news"
	"github.com/savsata/gundem/internal/notification"
	"github.com/savsata/gundem/internal/poll"
	"github.com/savsata/gundem/internal/storage"
	"github.com/savsata/gundem/internal/user"
	"github.com/savsata/gundem/internal/visitor"
)

// ドメインサービスはハンドラーのインターフェースをそのまま満たすため、アダプタは不要。

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ NotificationServiceInterface = (*notification.Service)(nil)
var _ NewsServiceInterface = (*news.Service)(nil)
var _ CommentServiceInterface = (*comment.Service)(nil)
var _ PollServiceInterface = (*poll.Service)(nil)
var _ MessageServiceInterface = (*message.Service)(nil)
var _ AdminServiceInterface = (*admin.Service)(nil)
var _ VisitServiceInterface = (*visitor.Service)(nil)
var _ HealthChecker = (*storage.Store)(nil)

var _ middleware.SessionFinder = (*auth.Service)(nil)
var _ middleware.AdminChecker = (*auth.Service)(nil)
var _ middleware.VisitRecorder = (*visitor.Service)(nil)
