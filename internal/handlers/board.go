package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"haruboard/internal/middleware"
	"haruboard/internal/models"
	"haruboard/internal/repository"
)

const (
	msgPostNotFound = "Post not found."
	msgNoPermission = "You do not have permission to change this post."
)

type BoardHandler struct {
	posts    repository.PostRepository
	pageSize int
	log      *zap.Logger
}

func NewBoardHandler(posts repository.PostRepository, pageSize int, log *zap.Logger) *BoardHandler {
	if pageSize < 1 {
		pageSize = repository.DefaultPageSize
	}
	return &BoardHandler{posts: posts, pageSize: pageSize, log: log}
}

// maxListPages caps how many pages "load more" accumulates.
const maxListPages = 100

// listRow numbers a post the way the list shows it, oldest loaded row is 1.
type listRow struct {
	models.Post
	Number int
}

// List 帖子列表，?pages=N 表示已经点了 N-1 次“加载更多”
//
// Each click reloads the list from the top and follows the cursor N times,
// so earlier rows stay on the page.
func (h *BoardHandler) List(c *gin.Context) {
	pages := 1
	if raw := c.Query("pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.Redirect(http.StatusFound, "/")
			return
		}
		pages = min(n, maxListPages)
	}

	var (
		posts   []models.Post
		cursor  string
		hasMore bool
	)
	for i := 0; i < pages; i++ {
		page, err := h.posts.ListPosts(c.Request.Context(), h.pageSize, cursor)
		if err != nil {
			serverError(c, h.log, err, "Failed to load posts.")
			return
		}
		posts = append(posts, page.Posts...)
		cursor, hasMore = page.NextCursor, page.HasMore
		if !hasMore {
			break
		}
	}

	rows := make([]listRow, len(posts))
	for i, p := range posts {
		rows[i] = listRow{Post: p, Number: len(posts) - i}
	}

	Render(c, http.StatusOK, "board/list.html", gin.H{
		"Posts":     rows,
		"HasMore":   hasMore && pages < maxListPages,
		"NextPages": pages + 1,
	})
}

func (h *BoardHandler) ShowWrite(c *gin.Context) {
	Render(c, http.StatusOK, "board/write.html", gin.H{"Form": postForm{}})
}

func (h *BoardHandler) Write(c *gin.Context) {
	sess := middleware.CurrentSession(c)

	var form postForm
	_ = c.ShouldBind(&form)
	if msg := form.check(); msg != "" {
		Render(c, http.StatusBadRequest, "board/write.html", gin.H{"Error": msg, "Form": form})
		return
	}

	id, err := h.posts.CreatePost(c.Request.Context(), form.Title, form.Content, sess.UID())
	if err != nil {
		h.log.Error("create post failed", zap.String("uid", sess.UID()), zap.Error(err))
		Render(c, http.StatusInternalServerError, "board/write.html", gin.H{"Error": "Failed to create the post.", "Form": form})
		return
	}
	h.log.Info("post created", zap.String("post_id", id), zap.String("uid", sess.UID()))
	c.Redirect(http.StatusFound, "/")
}

func (h *BoardHandler) Detail(c *gin.Context) {
	post, ok := h.load(c)
	if !ok {
		return
	}
	Render(c, http.StatusOK, "board/detail.html", gin.H{
		"Post":     post,
		"IsAuthor": post.AuthorID == middleware.CurrentSession(c).UID(),
	})
}

func (h *BoardHandler) ShowEdit(c *gin.Context) {
	post, ok := h.loadOwned(c)
	if !ok {
		return
	}
	Render(c, http.StatusOK, "board/edit.html", gin.H{
		"Post": post,
		"Form": postForm{Title: post.Title, Content: post.Content},
	})
}

func (h *BoardHandler) Update(c *gin.Context) {
	post, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var form postForm
	_ = c.ShouldBind(&form)
	if msg := form.check(); msg != "" {
		Render(c, http.StatusBadRequest, "board/edit.html", gin.H{"Error": msg, "Post": post, "Form": form})
		return
	}

	if err := h.posts.UpdatePost(c.Request.Context(), post.ID, form.Title, form.Content); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			RenderError(c, http.StatusNotFound, msgPostNotFound)
			return
		}
		h.log.Error("update post failed", zap.String("post_id", post.ID), zap.Error(err))
		Render(c, http.StatusInternalServerError, "board/edit.html", gin.H{"Error": "Failed to update the post.", "Post": post, "Form": form})
		return
	}
	c.Redirect(http.StatusFound, "/board/"+post.ID)
}

func (h *BoardHandler) Delete(c *gin.Context) {
	post, ok := h.loadOwned(c)
	if !ok {
		return
	}

	if err := h.posts.DeletePost(c.Request.Context(), post.ID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			RenderError(c, http.StatusNotFound, msgPostNotFound)
			return
		}
		serverError(c, h.log, err, "Failed to delete the post.")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// load reads the post for the detail page, counting a view.
func (h *BoardHandler) load(c *gin.Context) (*models.Post, bool) {
	return h.fetch(c, h.posts.GetPost)
}

// loadOwned reads the post without counting a view and refuses anyone but
// the author. The repository itself does not check ownership.
func (h *BoardHandler) loadOwned(c *gin.Context) (*models.Post, bool) {
	post, ok := h.fetch(c, h.posts.LookupPost)
	if !ok {
		return nil, false
	}
	if post.AuthorID != middleware.CurrentSession(c).UID() {
		RenderError(c, http.StatusForbidden, msgNoPermission)
		return nil, false
	}
	return post, true
}

func (h *BoardHandler) fetch(c *gin.Context, get func(context.Context, string) (*models.Post, error)) (*models.Post, bool) {
	post, err := get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			RenderError(c, http.StatusNotFound, msgPostNotFound)
			return nil, false
		}
		serverError(c, h.log, err, "Failed to load the post.")
		return nil, false
	}
	return post, true
}
