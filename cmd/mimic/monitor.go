package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/teslashibe/go-mimic/pkg/kinematics"
	"github.com/teslashibe/go-mimic/pkg/protocol"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

type MonitorCommand struct {
	URL    string   `short:"u" long:"url" default:"ws://localhost:8080/ws/joints" description:"Renderer WebSocket of a running server"`
	Joints []string `short:"j" long:"joint" description:"Joint to chart (repeatable, defaults to head and arms)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

var defaultMonitorJoints = []string{
	retarget.HeadZ,
	retarget.HeadY,
	retarget.AbsZ,
	retarget.Left.Joint(retarget.ShoulderY),
	retarget.Right.Joint(retarget.ShoulderY),
	retarget.Left.Joint(retarget.ElbowY),
	retarget.Right.Joint(retarget.ElbowY),
}

// Cycled through for the charted joints
var jointColors = []string{"196", "208", "226", "46", "51", "201", "99", "250"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Messages from the websocket reader
type jointsMsg protocol.JointsData
type logMsg string

type feed struct {
	frames chan protocol.JointsData
	logs   chan string
}

// read forwards joints messages until ctx ends, redialing on errors.
func (f *feed) read(ctx context.Context, url string) {
	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			f.log(fmt.Sprintf("dial %s: %v", url, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		f.log("connected to " + url)

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					f.log(fmt.Sprintf("read: %v", err))
				}
				break
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil || msg.Type != protocol.TypeJoints {
				continue // previews and overlays
			}
			var jd protocol.JointsData
			if err := msg.ParseData(&jd); err != nil {
				f.log(fmt.Sprintf("decode joints: %v", err))
				continue
			}
			select {
			case f.frames <- jd:
			default: // UI is behind, drop
			}
		}
		stop()
		conn.Close()
	}
}

func (f *feed) log(s string) {
	select {
	case f.logs <- time.Now().Format(time.TimeOnly) + " " + s:
	default:
	}
}

func waitForJoints(f *feed) tea.Cmd {
	return func() tea.Msg {
		return jointsMsg(<-f.frames)
	}
}

func waitForLog(f *feed) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-f.logs)
	}
}

type monitorModel struct {
	feed     *feed
	url      string
	joints   []string
	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	state    string
	seq      uint64
	source   string
	quitting bool
}

func initialMonitorModel(f *feed, url string, joints []string) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-180, 180),
	)
	for i, name := range joints {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return monitorModel{feed: f, url: url, joints: joints, chart: &chart}
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		waitForJoints(m.feed),
		waitForLog(m.feed),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case jointsMsg:
		if msg.Source != m.source && msg.Source != "" {
			m.addLog("source " + msg.Source)
			m.source = msg.Source
		}
		m.state = msg.State
		m.seq = msg.Seq
		frame := retarget.Frame{Commands: msg.Commands}
		for _, name := range m.joints {
			if v, ok := frame.Value(name); ok {
				m.chart.PushDataSet(name, kinematics.Degrees(v))
			}
		}
		m.chart.DrawAll()
		return m, waitForJoints(m.feed)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.feed)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("mimic monitor"))
	sb.WriteString(" - " + m.url)
	if m.state != "" {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%s #%d]", m.state, m.seq)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.legend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m monitorModel) legend() string {
	var items []string
	for i, name := range m.joints {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	joints := c.Joints
	if len(joints) == 0 {
		joints = defaultMonitorJoints
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &feed{
		frames: make(chan protocol.JointsData, 64),
		logs:   make(chan string, 16),
	}
	go f.read(ctx, c.URL)

	p := tea.NewProgram(initialMonitorModel(f, c.URL, joints), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}
