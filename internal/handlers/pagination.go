package handlers

import (
	"net/url"
	"strconv"

	"tiendatec/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

var errInvalidPage = fiber.NewError(fiber.StatusNotFound, "Invalid page.")

// pageFromQuery reads page and page_size. A malformed page is an error, a
// malformed page_size falls back to the default.
func pageFromQuery(c *fiber.Ctx) (repositories.Page, error) {
	page := repositories.Page{Number: 1, Size: repositories.DefaultPageSize}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, errInvalidPage
		}
		page.Number = n
	}
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.Size = n
		}
	}
	return page.Normalize(), nil
}

// paginated writes the {count, next, previous, results} envelope.
func paginated[T any](c *fiber.Ctx, page repositories.Page, total int64, results []T) error {
	if page.Number > 1 && int64(page.Offset()) >= total {
		return respondError(c, errInvalidPage)
	}
	if results == nil {
		results = []T{}
	}

	var next, previous *string
	if int64(page.Offset()+len(results)) < total {
		next = pageLink(c, page.Number+1)
	}
	if page.Number > 1 {
		previous = pageLink(c, page.Number-1)
	}
	return c.JSON(fiber.Map{
		"count":    total,
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}

// pageLink is the current URL with its page parameter replaced. The first
// page is linked without one.
func pageLink(c *fiber.Ctx, number int) *string {
	u, err := url.Parse(c.BaseURL() + c.Path())
	if err != nil {
		return nil
	}
	query := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		query.Add(string(key), string(value))
	})
	if number == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = query.Encode()
	link := u.String()
	return &link
}
