package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/google/uuid"

	"github.com/jaminalder/tic-tac-toe-history/internal/app"
)

type templates struct {
	game  *template.Template
	board *template.Template
	index *template.Template
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org@1.9.12/dist/ext/sse.js"></script>
<style>
.board-row{display:flex}
.square{width:3em;height:3em;font-size:1.5em;margin:0}
.square.winning{background:#ffe066}
.alert{color:#b00}
</style>
</head><body>{{template "content" .}}</body></html>`))
	// board lives in the base set so the game page can include it
	template.Must(base.New("board").Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Tic-Tac-Toe</h1><form action="/game" method="post"><button>New game</button></form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
{{if .Watching}}
<div hx-ext="sse" sse-connect="/game/{{.ID}}/events">
  <div sse-swap="board" hx-target="#game" hx-swap="outerHTML">{{template "board" .}}</div>
</div>
{{else}}
{{template "board" .}}
{{end}}`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Parse(boardTemplate))
	return &templates{game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// boardData feeds the board fragment.
type boardData struct {
	ID       string
	View     app.GameView
	Watching bool
	Error    string
}

func newBoardData(gs *app.GameState, viewer, errMsg string) boardData {
	return boardData{
		ID:       gs.ID,
		View:     gs.View(),
		Watching: gs.Owner != viewer,
		Error:    errMsg,
	}
}

const boardTemplate = `
<div id="game">
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  {{if .Watching}}
  <div class="watching">You are watching this game</div>
  {{end}}
  <div class="game-board">
    <div class="status">{{.View.Board.Status}}</div>
    {{range .View.Board.Rows}}
    <div class="board-row">
      {{range .}}
      <form action="/game/{{$.ID}}/play" hx-post="/game/{{$.ID}}/play" hx-target="#game" hx-swap="outerHTML" method="post">
        <input type="hidden" name="cell" value="{{.Index}}">
        <button type="submit" class="square{{if .Winning}} winning{{end}}" data-cell="{{.Index}}"{{if $.Watching}} disabled{{end}}>{{.Value}}</button>
      </form>
      {{end}}
    </div>
    {{end}}
  </div>
  <div class="game-info">
    <form action="/game/{{.ID}}/toggle" hx-post="/game/{{.ID}}/toggle" hx-target="#game" hx-swap="outerHTML" method="post">
      <button type="submit" class="toggle"{{if .Watching}} disabled{{end}}>Toggle Order</button>
    </form>
    {{if not .Watching}}
    <form action="/game/{{.ID}}/delete" hx-post="/game/{{.ID}}/delete" method="post">
      <button type="submit" class="abandon">Abandon game</button>
    </form>
    {{end}}
    <ol class="moves">
      {{range .View.Moves}}
      <li data-move="{{.Move}}">
        {{if .Link}}
        <form action="/game/{{$.ID}}/jump" hx-post="/game/{{$.ID}}/jump" hx-target="#game" hx-swap="outerHTML" method="post">
          <input type="hidden" name="move" value="{{.Move}}">
          <button type="submit"{{if $.Watching}} disabled{{end}}>{{.Label}}</button>
        </form>
        {{else}}
        <span>{{.Label}}</span>
        {{end}}
      </li>
      {{end}}
    </ol>
  </div>
</div>
`

const playerCookie = "player_id"

// ensurePlayerCookie returns the caller's player id, issuing one if needed.
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookie); err == nil && c.Value != "" {
		return c.Value
	}
	v := uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: playerCookie, Value: v, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return v
}
