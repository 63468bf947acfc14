// Package domain defines the persistence models for services, users and
// threaded comments. These types are mapped with GORM and form the core data
// layer of the comments backend.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/tbourn/go-comments-backend/internal/treepath"
)

// Service is a client application registered to store comments. Requests on
// behalf of a service are authenticated with signatures keyed by Token.
//
// Fields:
//   - ID: UUID primary key (char(36)), generated on insert.
//   - ServiceName: unique, non-empty human name.
//   - Token: 32 lowercase hex chars, generated on insert and never rotated.
type Service struct {
	ID          string `json:"id"          gorm:"type:char(36);primaryKey"`
	ServiceName string `json:"serviceName" gorm:"type:varchar(255);not null;uniqueIndex:ux_services_name"`
	Token       string `json:"token"       gorm:"type:char(32);not null"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// BeforeCreate fills the generated columns of a new service.
func (s *Service) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Token == "" {
		tok, err := NewToken()
		if err != nil {
			return err
		}
		s.Token = tok
	}
	return nil
}

// NewToken returns a fresh 128-bit secret as lowercase hex.
func NewToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// User is a commenter, identified by the calling service's own id for them.
// Users are created lazily on their first comment and never deleted.
//
// Fields:
//   - ID: auto-increment primary key.
//   - ServiceID / ExternalID: unique together (ux_users_service_external).
//   - FirstName, LastName, UserGroup: optional profile data.
type User struct {
	ID         int64   `json:"id"                  gorm:"primaryKey;autoIncrement"`
	ServiceID  string  `json:"-"                   gorm:"type:char(36);not null;uniqueIndex:ux_users_service_external,priority:1"`
	ExternalID string  `json:"externalId"          gorm:"type:varchar(255);not null;uniqueIndex:ux_users_service_external,priority:2"`
	FirstName  *string `json:"firstName,omitempty" gorm:"type:varchar(255)"`
	LastName   *string `json:"lastName,omitempty"  gorm:"type:varchar(255)"`
	UserGroup  *string `json:"userGroup,omitempty" gorm:"type:varchar(255)"`

	Service Service `json:"-" gorm:"foreignKey:ServiceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Comment is a node of a comment thread attached to one item of one service.
//
// Path is the materialized path of the node (see package treepath): sorting
// comments by Path yields the pre-order traversal of the thread, and Level is
// the number of path segments. Comments are soft-deleted through IsDeleted so
// that replies keep their ancestors.
type Comment struct {
	ID           int64      `json:"id"           gorm:"primaryKey;autoIncrement:false"`
	Path         PathColumn `json:"-"            gorm:"not null;uniqueIndex:ix_comments_path"`
	Level        int        `json:"level"        gorm:"not null"`
	ServiceID    string     `json:"-"            gorm:"type:char(36);not null;index:ix_comments_scope,priority:1"`
	DataType     string     `json:"-"            gorm:"type:varchar(32);not null;index:ix_comments_scope,priority:2"`
	ItemID       string     `json:"-"            gorm:"type:varchar(255);not null;index:ix_comments_scope,priority:3"`
	Scope        Scope      `json:"scope"        gorm:"type:varchar(16);not null;default:'all';index:ix_comments_scope,priority:4"`
	CommentText  string     `json:"commentText"  gorm:"type:varchar(3000);not null"`
	IsDeleted    bool       `json:"isDeleted"    gorm:"not null;default:false"`
	DateCreated  time.Time  `json:"dateCreated"  gorm:"not null;index"`
	DateModified time.Time  `json:"dateModified" gorm:"not null"`
	UserID       int64      `json:"-"            gorm:"not null;index"`

	// User is the author. It is loaded by the read paths of the store.
	User User `json:"user" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// PathColumn stores an encoded treepath.Path. Subtree range scans and tree
// ordering compare paths byte by byte, so the column uses a binary collation
// on every engine instead of the database locale.
type PathColumn string

// GormDBDataType implements gorm's per-dialect column type hook.
func (PathColumn) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return fmt.Sprintf(`varchar(%d) COLLATE "C"`, treepath.MaxLen)
	case "mysql":
		// ascii keeps the unique index within InnoDB's key length limit.
		return fmt.Sprintf("varchar(%d) CHARACTER SET ascii COLLATE ascii_bin", treepath.MaxLen)
	}
	// SQLite compares text with BINARY unless told otherwise.
	return fmt.Sprintf("varchar(%d)", treepath.MaxLen)
}

// CommentSeq allocates comment ids. Each insert yields the next id from the
// engine's auto-increment; rows are never deleted, so ids are never reused.
type CommentSeq struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	AllocatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for CommentSeq.
func (CommentSeq) TableName() string { return "comment_id_seq" }
