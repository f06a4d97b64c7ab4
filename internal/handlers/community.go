package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/middleware"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/utils"
)

// CommunityHandler serves community posts and their comments.
type CommunityHandler struct {
	db        *gorm.DB
	mediaRoot string
}

// NewCommunityHandler constructs CommunityHandler.
func NewCommunityHandler(db *gorm.DB, mediaRoot string) *CommunityHandler {
	return &CommunityHandler{db: db, mediaRoot: mediaRoot}
}

// ListPosts returns posts with their authors, newest first.
func (h *CommunityHandler) ListPosts(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	pg := utils.ParsePagination(c)

	var total int64
	if err := db.Model(&models.Post{}).Count(&total).Error; err != nil {
		return apperror.NewDatabaseError("count posts", err)
	}

	var posts []models.Post
	if err := db.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&posts).Error; err != nil {
		return apperror.NewDatabaseError("list posts", err)
	}

	out := make([]postResponse, len(posts))
	for i := range posts {
		out[i] = newPostResponse(c, &posts[i])
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       out,
		"pagination": pg.Meta(total),
	})
}

// GetPost returns a post with its comments.
func (h *CommunityHandler) GetPost(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var post models.Post
	if err := db.Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Comments.User").
		First(&post, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "Post not found.", "load post")
	}

	return c.JSON(fiber.Map{"success": true, "data": newPostResponse(c, &post)})
}

type postRequest struct {
	PostName string `json:"post_name" form:"post_name" validate:"required,max=50"`
	Content  string `json:"content" form:"content" validate:"required"`
}

// CreatePost publishes a post. An optional multipart "image" may be attached.
func (h *CommunityHandler) CreatePost(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	image, err := optionalUpload(c, "image", h.mediaRoot, "community")
	if err != nil {
		return err
	}

	post := models.Post{
		PostName: req.PostName,
		UserID:   userID,
		Content:  req.Content,
		Image:    image,
	}
	if err := db.Create(&post).Error; err != nil {
		return apperror.NewDatabaseError("create post", err)
	}
	if err := db.Preload("User").First(&post, "id = ?", post.ID).Error; err != nil {
		return apperror.NewDatabaseError("load post", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": newPostResponse(c, &post)})
}

type updatePostRequest struct {
	PostName *string `json:"post_name" form:"post_name" validate:"omitempty,min=1,max=50"`
	Content  *string `json:"content" form:"content" validate:"omitempty,min=1"`
}

// UpdatePost edits a post. Only its author or staff may do this.
func (h *CommunityHandler) UpdatePost(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	post, err := h.ownedPost(c)
	if err != nil {
		return err
	}

	var req updatePostRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.PostName != nil {
		post.PostName = *req.PostName
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	image, err := optionalUpload(c, "image", h.mediaRoot, "community")
	if err != nil {
		return err
	}
	if image != "" {
		post.Image = image
	}

	if err := db.Omit("User", "Comments").Save(post).Error; err != nil {
		return apperror.NewDatabaseError("update post", err)
	}

	return c.JSON(fiber.Map{"success": true, "data": newPostResponse(c, post)})
}

// DeletePost removes a post and its comments. Only its author or staff may do this.
func (h *CommunityHandler) DeletePost(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	post, err := h.ownedPost(c)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		return apperror.NewDatabaseError("delete post", err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Post deleted."})
}

// ListPostComments returns the comments under a post, oldest first.
func (h *CommunityHandler) ListPostComments(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	postID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	if err := db.Select("id").First(&models.Post{}, "id = ?", postID).Error; err != nil {
		return notFoundOr(err, "Post not found.", "load post")
	}

	var comments []models.Comment
	if err := db.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at asc").
		Find(&comments).Error; err != nil {
		return apperror.NewDatabaseError("list comments", err)
	}

	return c.JSON(fiber.Map{"success": true, "data": commentList(comments)})
}

// ListComments returns every comment, newest first.
func (h *CommunityHandler) ListComments(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	pg := utils.ParsePagination(c)

	var total int64
	if err := db.Model(&models.Comment{}).Count(&total).Error; err != nil {
		return apperror.NewDatabaseError("count comments", err)
	}

	var comments []models.Comment
	if err := db.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&comments).Error; err != nil {
		return apperror.NewDatabaseError("list comments", err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       commentList(comments),
		"pagination": pg.Meta(total),
	})
}

type commentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

// CreateComment adds a comment under a post.
func (h *CommunityHandler) CreateComment(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	postID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := db.Select("id").First(&models.Post{}, "id = ?", postID).Error; err != nil {
		return notFoundOr(err, "Post not found.", "load post")
	}

	comment := models.Comment{PostID: postID, UserID: userID, Comment: req.Comment}
	if err := db.Create(&comment).Error; err != nil {
		return apperror.NewDatabaseError("create comment", err)
	}
	if err := db.Preload("User").First(&comment, "id = ?", comment.ID).Error; err != nil {
		return apperror.NewDatabaseError("load comment", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": newCommentResponse(&comment)})
}

// DeleteComment removes a comment. Only its author or staff may do this.
func (h *CommunityHandler) DeleteComment(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var comment models.Comment
	if err := db.First(&comment, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "Comment not found.", "load comment")
	}

	if err := h.requireOwnerOrStaff(c, userID, comment.UserID); err != nil {
		return err
	}

	if err := db.Delete(&comment).Error; err != nil {
		return apperror.NewDatabaseError("delete comment", err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Comment deleted."})
}

func (h *CommunityHandler) ownedPost(c *fiber.Ctx) (*models.Post, error) {
	db := h.db.WithContext(c.UserContext())

	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}

	id, err := paramUUID(c, "id")
	if err != nil {
		return nil, err
	}

	var post models.Post
	if err := db.Preload("User").First(&post, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Post not found.", "load post")
	}

	if err := h.requireOwnerOrStaff(c, userID, post.UserID); err != nil {
		return nil, err
	}
	return &post, nil
}

func (h *CommunityHandler) requireOwnerOrStaff(c *fiber.Ctx, userID, ownerID uuid.UUID) error {
	db := h.db.WithContext(c.UserContext())

	if userID == ownerID {
		return nil
	}
	staff, err := middleware.IsStaff(c, db)
	if err != nil {
		return err
	}
	if !staff {
		return apperror.NewForbiddenError("You do not have permission to perform this action.")
	}
	return nil
}

func commentList(comments []models.Comment) []commentResponse {
	out := make([]commentResponse, len(comments))
	for i := range comments {
		out[i] = newCommentResponse(&comments[i])
	}
	return out
}

func notFoundOr(err error, notFound, operation string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NewNotFoundError(notFound)
	}
	return apperror.NewDatabaseError(operation, err)
}
