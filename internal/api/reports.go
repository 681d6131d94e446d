package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"presence/internal/stats"
)

const dateLayout = "2006-01-02"

// dailyReport serves the per-day summary. Results are cached in Redis
// for a short TTL since every dashboard screen polls this endpoint.
func (s *Server) dailyReport(c *gin.Context) {
	day := time.Now().UTC()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	ctx := c.Request.Context()
	cacheKey := "presence:report:daily:" + day.Format(dateLayout)
	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, cacheKey).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json", raw)
			return
		}
	}

	people, err := s.People.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	entries, err := s.Entries.ListRange(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summary := stats.DailySummary(people, entries, dayStart)
	if s.Cache != nil {
		if raw, err := json.Marshal(summary); err == nil {
			if err := s.Cache.Set(ctx, cacheKey, raw, s.Config.ReportCacheTTL).Err(); err != nil {
				log.Printf("report cache write failed: %v", err)
			}
		}
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) rangeReport(c *gin.Context) {
	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	bucket := stats.Bucket(c.DefaultQuery("bucket", string(stats.BucketDay)))
	if !bucket.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket must be day, week or month"})
		return
	}
	// end is inclusive as a date; widen to the end of that day.
	end = end.AddDate(0, 0, 1)

	ctx := c.Request.Context()
	people, err := s.People.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Load the whole first bucket even when start sits mid-bucket.
	entries, err := s.Entries.ListRange(ctx, start.AddDate(0, -1, -7), end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"buckets": stats.RangeSummary(people, entries, start, end, bucket)})
}

func (s *Server) personReport(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := s.People.Get(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	entries, err := s.Entries.ListPerson(ctx, p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats.PersonStatistics(*p, entries, time.Now().UTC()))
}

func (s *Server) departmentReport(c *gin.Context) {
	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	end = end.AddDate(0, 0, 1)

	expected := 0
	if v := c.Query("expected_occasions"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			expected = parsed
		}
	}
	if expected <= 0 {
		// One occasion per calendar day in the window.
		expected = int(end.Sub(start).Hours() / 24)
	}

	ctx := c.Request.Context()
	people, err := s.People.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	entries, err := s.Entries.ListRange(ctx, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	breakdown := stats.DepartmentBreakdown(people, entries, stats.Window{
		Start:             start,
		End:               end,
		ExpectedOccasions: expected,
	})
	c.JSON(http.StatusOK, gin.H{"departments": breakdown})
}
