// Package web exposes a small read-only HTTP API over the suggestion store,
// plus a health endpoint for deployment probes.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stake-plus/suggestions/src/data"
)

const pageSize = 25

func New(db *gorm.DB) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, db)
	return g
}

func attachRoutes(g *gin.Engine, db *gorm.DB) {
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.Group("/v1")
	{
		h := Suggestions{db: db}
		v1.GET("/guilds/:guild/suggestions", h.List)
	}
}

type Suggestions struct {
	db *gorm.DB
}

type suggestionView struct {
	ID         uint32 `json:"id"`
	AuthorID   string `json:"authorId"`
	MessageID  string `json:"messageId"`
	CreatedAt  string `json:"createdAt"`
	RepliedAt  string `json:"repliedAt,omitempty"`
	ArchivedAt string `json:"archivedAt,omitempty"`
}

func (h Suggestions) List(c *gin.Context) {
	guildID, err := strconv.ParseUint(c.Param("guild"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad guild id"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	rows, err := data.ListSuggestions(c.Request.Context(), h.db, guildID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "query failed"})
		return
	}

	views := make([]suggestionView, 0, len(rows))
	for _, s := range rows {
		v := suggestionView{
			ID:        s.ID,
			AuthorID:  strconv.FormatUint(s.AuthorID, 10),
			MessageID: strconv.FormatUint(s.MessageID, 10),
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		}
		if s.RepliedAt != nil {
			v.RepliedAt = s.RepliedAt.UTC().Format(time.RFC3339)
		}
		if s.ArchivedAt != nil {
			v.ArchivedAt = s.ArchivedAt.UTC().Format(time.RFC3339)
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, gin.H{"page": page, "suggestions": views})
}
