package components

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/tui/colors"
	"github.com/allbin/serialterm/internal/tui/styles"
)

const (
	columnKeyPath   = "path"
	columnKeyUSB    = "usb"
	columnKeyDesc   = "desc"
	columnKeyIndex  = "index"
	pickerPageSize  = 15
	pickerPathWidth = 28
	pickerUSBWidth  = 24
	pickerDescWidth = 36
)

// PortPicker lets the user choose one of the enumerated ports.
type PortPicker struct {
	table    table.Model
	ports    []identity.PortIdentity
	selected *identity.PortIdentity
	quit     bool

	choose key.Binding
	cancel key.Binding
}

func NewPortPicker(ports []identity.PortIdentity) *PortPicker {
	columns := []table.Column{
		table.NewColumn(columnKeyPath, "Port", pickerPathWidth),
		table.NewColumn(columnKeyUSB, "VID:PID:Serial", pickerUSBWidth),
		table.NewColumn(columnKeyDesc, "Description", pickerDescWidth),
	}

	rows := make([]table.Row, 0, len(ports))
	for i, p := range ports {
		usb := "-"
		if p.USB != nil {
			usb = p.USB.String()
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPath:  p.Path,
			columnKeyUSB:   usb,
			columnKeyDesc:  p.Description,
			columnKeyIndex: i,
		}))
	}

	t := table.New(columns).
		WithRows(rows).
		WithPageSize(pickerPageSize).
		BorderRounded().
		WithBaseStyle(lipgloss.NewStyle().Foreground(colors.Text).BorderForeground(colors.Surface2)).
		HighlightStyle(lipgloss.NewStyle().Foreground(colors.Base).Background(colors.Mauve)).
		Focused(true)

	return &PortPicker{
		table: t,
		ports: ports,
		choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		cancel: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/esc", "cancel"),
		),
	}
}

func (p *PortPicker) Init() tea.Cmd {
	return nil
}

func (p *PortPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, p.cancel):
			p.quit = true
			return p, tea.Quit
		case key.Matches(msg, p.choose):
			if len(p.ports) == 0 {
				return p, nil
			}
			if i, ok := p.table.HighlightedRow().Data[columnKeyIndex].(int); ok && i < len(p.ports) {
				chosen := p.ports[i]
				p.selected = &chosen
			}
			return p, tea.Quit
		}
	}

	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return p, cmd
}

func (p *PortPicker) View() string {
	if len(p.ports) == 0 {
		return styles.ErrorStyle.Render("No serial ports found") + "\n"
	}
	title := styles.TitleStyle.Render("Select a serial port")
	hint := lipgloss.NewStyle().Foreground(colors.Overlay1).Render("↑/↓ move • enter connect • q cancel")
	return lipgloss.JoinVertical(lipgloss.Left, title, p.table.View(), hint) + "\n"
}

// Selected returns the chosen port, or nil if the picker was cancelled.
func (p *PortPicker) Selected() *identity.PortIdentity {
	if p.quit {
		return nil
	}
	return p.selected
}

// PickPort runs the picker on the terminal and returns the chosen port.
func PickPort(ports []identity.PortIdentity) (*identity.PortIdentity, error) {
	picker := NewPortPicker(ports)
	if _, err := tea.NewProgram(picker).Run(); err != nil {
		return nil, err
	}
	return picker.Selected(), nil
}
