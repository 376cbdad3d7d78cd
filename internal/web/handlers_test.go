package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaminalder/tic-tac-toe-history/internal/app"
	"github.com/jaminalder/tic-tac-toe-history/internal/store/memory"
	"github.com/jaminalder/tic-tac-toe-history/internal/testutil"
)

const owner = "owner-1"

func newTestServer(t *testing.T) (*app.Service, http.Handler) {
	t.Helper()
	s := app.NewService(memory.New(), testutil.NopLogger())
	h := NewServer(s, Options{Logger: testutil.NopLogger(), Heartbeat: time.Hour})
	return s, h
}

func newGame(t *testing.T, s *app.Service) string {
	t.Helper()
	gs, err := s.CreateGame(context.Background(), owner)
	require.NoError(t, err)
	return gs.ID
}

// post sends a form as an htmx request from player pid.
func post(t *testing.T, h http.Handler, path, pid string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	if pid != "" {
		req.AddCookie(&http.Cookie{Name: playerCookie, Value: pid})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, h http.Handler, path, pid string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if pid != "" {
		req.AddCookie(&http.Cookie{Name: playerCookie, Value: pid})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func parseHTML(t *testing.T, rr *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	return doc
}

func squares(doc *goquery.Document) []string {
	var out []string
	doc.Find("button.square").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func moveLabels(doc *goquery.Document) []string {
	var out []string
	doc.Find("ol.moves li").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	rr := get(t, h, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)
	assert.Equal(t, 1, doc.Find(`form[action="/game"][method="post"]`).Length())
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rr := get(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestCreateRedirectsToGameAndSetsOwner(t *testing.T) {
	svc, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/game", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	loc := rr.Result().Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/game/"), loc)

	var pid string
	for _, c := range rr.Result().Cookies() {
		if c.Name == playerCookie {
			pid = c.Value
		}
	}
	require.NotEmpty(t, pid, "expected player_id cookie")

	gs, err := svc.Get(context.Background(), strings.TrimPrefix(loc, "/game/"))
	require.NoError(t, err)
	assert.Equal(t, pid, gs.Owner)
}

func TestGamePageForOwner(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	rr := get(t, h, "/game/"+id, owner)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)

	assert.Equal(t, "Next player: X", strings.TrimSpace(doc.Find(".status").Text()))
	assert.Len(t, squares(doc), 9)
	assert.Equal(t, 3, doc.Find(".board-row").Length())
	assert.Equal(t, []string{"Go to game start"}, moveLabels(doc))
	assert.Equal(t, 0, doc.Find(`[hx-ext="sse"]`).Length(), "owner page is driven by its own responses")
	assert.Equal(t, 0, doc.Find("button[disabled]").Length())
}

func TestGamePageForWatcher(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	rr := get(t, h, "/game/"+id, "someone-else")
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)

	sse := doc.Find(`[hx-ext="sse"]`)
	require.Equal(t, 1, sse.Length())
	conn, _ := sse.Attr("sse-connect")
	assert.Equal(t, "/game/"+id+"/events", conn)
	assert.Contains(t, doc.Find(".watching").Text(), "watching")
	assert.Equal(t, 9, doc.Find("button.square[disabled]").Length())
}

func TestGamePageUnknown(t *testing.T) {
	_, h := newTestServer(t)
	rr := get(t, h, "/game/nope", owner)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlayUpdatesBoard(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	rr := post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"0"}})
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)

	assert.Equal(t, 1, doc.Find("#game").Length())
	assert.Equal(t, []string{"X", "", "", "", "", "", "", "", ""}, squares(doc))
	assert.Equal(t, "Next player: O", strings.TrimSpace(doc.Find(".status").Text()))
	assert.Equal(t, []string{"Go to game start", "you are at move #1"}, moveLabels(doc))
	assert.Equal(t, 0, doc.Find(`li[data-move="1"] button`).Length(), "current move is not a link")
}

func TestPlayOccupiedCellIsSilent(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)
	post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"4"}})

	rr := post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"4"}})
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)
	assert.Equal(t, 0, doc.Find(".alert").Length())
	assert.Equal(t, "X", squares(doc)[4])
	assert.Equal(t, "Next player: O", strings.TrimSpace(doc.Find(".status").Text()))
}

func TestPlayWinHighlightsLine(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)
	var rr *httptest.ResponseRecorder
	for _, c := range []string{"0", "1", "4", "2", "8"} {
		rr = post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {c}})
		require.Equal(t, http.StatusOK, rr.Code)
	}
	doc := parseHTML(t, rr)
	assert.Equal(t, "Winner: X", strings.TrimSpace(doc.Find(".status").Text()))

	var winning []string
	doc.Find("button.square.winning").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("data-cell")
		winning = append(winning, v)
	})
	assert.Equal(t, []string{"0", "4", "8"}, winning)

	// clicks after the win change nothing
	rr = post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"5"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "", squares(parseHTML(t, rr))[5])
}

func TestDrawStatus(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)
	var rr *httptest.ResponseRecorder
	for _, c := range []string{"0", "1", "2", "4", "3", "5", "7", "6", "8"} {
		rr = post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {c}})
	}
	doc := parseHTML(t, rr)
	assert.Equal(t, "Draw!", strings.TrimSpace(doc.Find(".status").Text()))
	assert.Equal(t, 0, doc.Find("button.square.winning").Length())
}

func TestPlayBadInput(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	rr := post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"abc"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, parseHTML(t, rr).Find(".alert").Text(), "Invalid cell")

	rr = post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"12"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(t, h, "/game/nope/play", owner, url.Values{"cell": {"1"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWatcherCannotPlay(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	rr := post(t, h, "/game/"+id+"/play", "intruder", url.Values{"cell": {"0"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	doc := parseHTML(t, rr)
	assert.Contains(t, doc.Find(".alert").Text(), "You are watching this game")
	assert.Equal(t, "", squares(doc)[0])
}

func TestJumpAndBranch(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)
	for _, c := range []string{"0", "1", "2"} {
		post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {c}})
	}

	rr := post(t, h, "/game/"+id+"/jump", owner, url.Values{"move": {"1"}})
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)
	assert.Equal(t, []string{"X", "", "", "", "", "", "", "", ""}, squares(doc))
	assert.Equal(t, []string{"Go to game start", "you are at move #1", "Go to move #2", "Go to move #3"}, moveLabels(doc))

	rr = post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"8"}})
	doc = parseHTML(t, rr)
	assert.Equal(t, []string{"Go to game start", "Go to move #1", "you are at move #2"}, moveLabels(doc))
	assert.Equal(t, "O", squares(doc)[8])

	rr = post(t, h, "/game/"+id+"/jump", owner, url.Values{"move": {"9"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestToggleReversesMoveList(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)
	post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"0"}})
	post(t, h, "/game/"+id+"/play", owner, url.Values{"cell": {"1"}})

	rr := post(t, h, "/game/"+id+"/toggle", owner, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(t, rr)
	assert.Equal(t, []string{"you are at move #2", "Go to move #1", "Go to game start"}, moveLabels(doc))
	assert.Equal(t, "X", squares(doc)[0])
}

func TestPlainFormPostRedirects(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/game/"+id+"/play", strings.NewReader("cell=3"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: playerCookie, Value: owner})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/game/"+id, rr.Header().Get("Location"))

	gs, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, gs.Controller.CurrentMove())
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	rr := get(t, h, "/game/"+id+"/events", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/event-stream"))

	rr = get(t, h, "/game/nope/events", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEventsStreamBoardToWatcher(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/game/"+id+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the subscription is registered before headers are flushed
	_, err = svc.Play(ctx, id, owner, 4)
	require.NoError(t, err)

	var event string
	var data strings.Builder
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
			continue
		}
		if strings.HasPrefix(line, "data: ") {
			data.WriteString(strings.TrimPrefix(line, "data: "))
			data.WriteString("\n")
			continue
		}
		if line == "" && event != "" {
			break
		}
	}
	require.Equal(t, "board", event)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(data.String()))
	require.NoError(t, err)
	assert.Equal(t, "Next player: O", strings.TrimSpace(doc.Find(".status").Text()))
	assert.Equal(t, 9, doc.Find("button.square[disabled]").Length())
	assert.Equal(t, "X", strings.TrimSpace(doc.Find(`button[data-cell="4"]`).Text()))
}

func TestAbandonGame(t *testing.T) {
	svc, h := newTestServer(t)
	id := newGame(t, svc)

	doc := parseHTML(t, get(t, h, "/game/"+id, owner))
	assert.Equal(t, 1, doc.Find(`form[action="/game/`+id+`/delete"]`).Length())
	doc = parseHTML(t, get(t, h, "/game/"+id, "someone-else"))
	assert.Equal(t, 0, doc.Find("button.abandon").Length())

	rr := post(t, h, "/game/"+id+"/delete", "someone-else", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = post(t, h, "/game/"+id+"/delete", owner, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("HX-Redirect"))

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, app.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/game/"+id, owner).Code)
}
