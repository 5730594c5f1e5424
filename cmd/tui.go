package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/ggufdeck/internal/apiclient"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

const tuiRequestTimeout = 10 * time.Minute

// tuiApp is the terminal front end of a running ggufdeck server.
type tuiApp struct {
	app        *tview.Application
	modelList  *tview.List
	chatView   *tview.TextView
	inputField *tview.InputField
	statusBar  *tview.TextView

	mu         sync.Mutex
	lines      []string
	processing bool

	client *apiclient.Client
}

func newTuiApp(client *apiclient.Client) *tuiApp {
	t := &tuiApp{client: client}
	t.app = tview.NewApplication()

	t.modelList = tview.NewList().ShowSecondaryText(true)
	t.modelList.SetBorder(true).SetTitle(" models ")
	t.modelList.SetSelectedFunc(func(_ int, name, _ string, _ rune) {
		go t.loadModel(name)
	})

	t.chatView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true).
		SetChangedFunc(func() { t.app.Draw() })
	t.chatView.SetBorder(true).SetTitle(" chat ")

	t.statusBar = tview.NewTextView().SetDynamicColors(true)

	t.inputField = tview.NewInputField().
		SetLabel("[blue::b] > [-:-:-]").
		SetLabelWidth(4).
		SetFieldBackgroundColor(tcell.ColorDefault)
	t.inputField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(t.inputField.GetText())
		if text == "" {
			return
		}
		t.inputField.SetText("")
		t.handleEnter(text)
	})

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.chatView, 0, 1, false).
		AddItem(t.statusBar, 1, 0, false).
		AddItem(t.inputField, 1, 0, true)
	root := tview.NewFlex().
		AddItem(t.modelList, 32, 0, false).
		AddItem(right, 0, 1, true)

	t.app.SetRoot(root, true).SetFocus(t.inputField)
	t.setupInputCapture()
	return t
}

func (t *tuiApp) run() error {
	go t.refresh()
	return t.app.EnableMouse(true).Run()
}

func (t *tuiApp) setupInputCapture() {
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyTab:
			if t.app.GetFocus() == t.inputField {
				t.app.SetFocus(t.modelList)
			} else {
				t.app.SetFocus(t.inputField)
			}
			return nil
		case tcell.KeyCtrlR:
			go t.refresh()
			return nil
		case tcell.KeyCtrlU:
			go t.unload()
			return nil
		}
		return event
	})
}

func (t *tuiApp) handleEnter(text string) {
	switch {
	case text == "/quit" || text == "/exit":
		t.app.Stop()
	case text == "/help":
		t.addLine("[gray::-]Enter sends a prompt. Tab switches to the model list, Enter there loads.")
		t.addLine("[gray::-]Ctrl-R refresh, Ctrl-U unload. /chats, /search <q>, /exp <kind> <prompt>, /viz, /quit")
	case text == "/chats":
		go t.listChats()
	case strings.HasPrefix(text, "/search "):
		go t.searchChats(strings.TrimPrefix(text, "/search "))
	case strings.HasPrefix(text, "/exp "):
		kind, prompt, _ := strings.Cut(strings.TrimPrefix(text, "/exp "), " ")
		t.addLine(fmt.Sprintf(" [blue::b]>>>[white] %s", tview.Escape(prompt)))
		go t.runExperiment(kind, prompt)
	case text == "/viz":
		go t.showVisualization()
	case strings.HasPrefix(text, "/"):
		t.addLine("[yellow]unknown command " + tview.Escape(text) + ", try /help")
	default:
		t.addLine(fmt.Sprintf(" [blue::b]>>>[white] %s", tview.Escape(text)))
		go t.generate(text)
	}
}

func (t *tuiApp) begin(status string) (context.Context, context.CancelFunc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.processing {
		return nil, nil, false
	}
	t.processing = true
	t.app.QueueUpdateDraw(func() { t.statusBar.SetText(" [gray::-]" + tview.Escape(status)) })
	ctx, cancel := context.WithTimeout(context.Background(), tuiRequestTimeout)
	return ctx, cancel, true
}

func (t *tuiApp) end() {
	t.mu.Lock()
	t.processing = false
	t.mu.Unlock()
	t.updateStatus()
}

func (t *tuiApp) generate(prompt string) {
	ctx, cancel, ok := t.begin("generating...")
	if !ok {
		t.addLine("[yellow]still busy with the previous request")
		return
	}
	defer cancel()
	defer t.end()

	resp, err := t.client.Generate(ctx, api.GenerateRequest{Prompt: prompt})
	if err != nil {
		t.addError(err)
		return
	}
	t.addLine(" [purple::b] * [-:-:-]" + renderMarkdown(resp.Response))
	if resp.Chat != "" {
		t.addLine("[gray::-]   saved " + tview.Escape(resp.Chat))
	}
}

func (t *tuiApp) runExperiment(kind, prompt string) {
	ctx, cancel, ok := t.begin("running " + kind + "...")
	if !ok {
		return
	}
	defer cancel()
	defer t.end()

	res, err := t.client.Experiment(ctx, kind, prompt)
	if err != nil {
		t.addError(err)
		return
	}
	t.addLine(" [purple::b] * [-:-:-]" + renderMarkdown(res.Response))
}

func (t *tuiApp) loadModel(name string) {
	ctx, cancel, ok := t.begin("loading " + name + "...")
	if !ok {
		return
	}
	defer cancel()
	defer t.end()

	resp, err := t.client.LoadModel(ctx, api.LoadRequest{Model: name})
	if err != nil {
		t.addError(err)
		return
	}
	t.addLine(fmt.Sprintf("[green]loaded %s on %s", tview.Escape(resp.Model.Name), resp.Model.Device))
	t.app.QueueUpdateDraw(func() { t.app.SetFocus(t.inputField) })
}

func (t *tuiApp) unload() {
	ctx, cancel, ok := t.begin("unloading...")
	if !ok {
		return
	}
	defer cancel()
	defer t.end()

	resp, err := t.client.UnloadModel(ctx)
	if err != nil {
		t.addError(err)
		return
	}
	msg := resp.Status
	if resp.Message != "" {
		msg = resp.Message
	}
	t.addLine("[gray::-]" + tview.Escape(msg))
}

func (t *tuiApp) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := t.client.ListModels(ctx)
	if err != nil {
		t.addError(err)
		return
	}
	t.app.QueueUpdateDraw(func() {
		t.modelList.Clear()
		for _, m := range entries {
			t.modelList.AddItem(m.Name, m.Kind+"  "+formatSize(m.Size), 0, nil)
		}
	})
	t.updateStatus()
}

func (t *tuiApp) listChats() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	infos, err := t.client.ListChats(ctx)
	if err != nil {
		t.addError(err)
		return
	}
	if len(infos) == 0 {
		t.addLine("[gray::-]no saved chats")
		return
	}
	for _, i := range infos {
		t.addLine(fmt.Sprintf("[gray::-]  %s  %s", tview.Escape(i.Name), formatSize(i.Size)))
	}
}

func (t *tuiApp) searchChats(query string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := t.client.SearchChats(ctx, query, 5)
	if err != nil {
		t.addError(err)
		return
	}
	t.addLine(fmt.Sprintf("[gray::-]%d %s matches", len(res.Results), res.Mode))
	for _, hit := range res.Results {
		t.addLine("[cyan]" + tview.Escape(hit.Name))
		t.addLine("  [blue]User:[white] " + tview.Escape(hit.Prompt))
		t.addLine("  [purple]Model:[white] " + tview.Escape(hit.Response))
	}
}

func (t *tuiApp) showVisualization() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := t.client.Visualization(ctx)
	if err != nil {
		t.addError(err)
		return
	}
	if payload.Empty() {
		t.addLine("[gray::-]load a model to see its visualization data")
		return
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		t.addError(err)
		return
	}
	t.addLine(tview.TranslateANSI(highlight("json", string(data))))
}

func (t *tuiApp) updateStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text := "no model loaded"
	if cur, err := t.client.CurrentModel(ctx); err != nil {
		text = "server unreachable"
	} else if cur.Loaded {
		text = fmt.Sprintf("%s  ctx %d  %s", cur.Model.Name, cur.Model.ContextLength, cur.Model.Device)
	}
	t.app.QueueUpdateDraw(func() {
		t.statusBar.SetText(" [gray::-]" + tview.Escape(text+"  (/help)"))
	})
}

func (t *tuiApp) addLine(line string) {
	t.mu.Lock()
	t.lines = append(t.lines, line)
	text := strings.Join(t.lines, "\n")
	t.mu.Unlock()
	t.app.QueueUpdateDraw(func() {
		t.chatView.SetText(text)
		t.chatView.ScrollToEnd()
	})
}

func (t *tuiApp) addError(err error) {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		t.addLine("[red]" + tview.Escape(apiErr.Message))
		return
	}
	t.addLine("[red]" + tview.Escape(err.Error()))
}

// renderMarkdown renders model output for the chat view.
func renderMarkdown(content string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return tview.Escape(content)
	}
	out, err := r.Render(content)
	if err != nil {
		return tview.Escape(content)
	}
	return tview.TranslateANSI(strings.Trim(out, "\n"))
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Terminal control panel for a running ggufdeck server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server-url")
		if serverURL == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			serverURL = "http://" + cfg.Addr()
		}

		client := apiclient.New(serverURL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := client.Health(ctx); err != nil {
			exitError("cannot reach %s, start it with `ggufdeck serve`: %v", serverURL, err)
		}
		return newTuiApp(client).run()
	},
}

func init() {
	tuiCmd.Flags().String("server-url", "", "ggufdeck server URL (default from config)")
	rootCmd.AddCommand(tuiCmd)
}
