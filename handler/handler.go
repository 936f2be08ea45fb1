// Package handler turns terminal input lines into widget operations and
// draws the widget as text.
package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"spa-chat-widget/internal/domain"
	"spa-chat-widget/internal/widget"
)

const helpText = `commands:
  <text>                          send a message
  /retry <id>                     resend a failed message
  /service <n>  /location <n>     pick from the offered list
  /date YYYY-MM-DD                check availability
  /slot <n>                       pick a time slot
  /book name|email|phone[|notes]  confirm the booking
  /cancel                         abandon the booking
  /offline  /online               simulate connectivity
  /scroll <px>                    move the transcript window
  /quit`

// Conversation is the widget surface driven by the terminal.
type Conversation interface {
	Send(ctx context.Context, text string) error
	Retry(ctx context.Context, id string) error
	Scroll(offset float64)
	View() widget.View
}

// Booker is the booking dialogue surface driven by the terminal.
type Booker interface {
	SelectService(ctx context.Context, id int) error
	SelectLocation(id int) error
	ChooseDate(ctx context.Context, date time.Time) error
	SelectSlot(index int) error
	Submit(ctx context.Context, info domain.ClientInfo) error
	Cancel()
}

// Switch flips the connectivity signal the widget listens to.
type Switch interface {
	Set(online bool)
}

type Response struct {
	Output string
	Quit   bool
}

type Handler struct {
	conv   Conversation
	booker Booker
	net    Switch
	loc    *time.Location
}

func NewHandler(conv Conversation, booker Booker, net Switch) (*Handler, error) {
	if conv == nil {
		return nil, errors.New("handler: conversation must not be nil")
	}
	if booker == nil {
		return nil, errors.New("handler: booker must not be nil")
	}
	if net == nil {
		return nil, errors.New("handler: connectivity switch must not be nil")
	}
	return &Handler{conv: conv, booker: booker, net: net, loc: time.Local}, nil
}

// Handle runs one input line and returns the redrawn widget. Operation
// failures are reported inline in Output; the returned error is reserved for
// failures of the handler itself.
func (h *Handler) Handle(ctx context.Context, line string) (Response, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Response{Output: Render(h.conv.View())}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return h.respond(h.conv.Send(ctx, line)), nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return Response{Quit: true}, nil
	case "/help":
		return Response{Output: helpText}, nil
	case "/retry":
		return h.respond(h.conv.Retry(ctx, arg)), nil
	case "/service":
		return h.respond(h.selectService(ctx, arg)), nil
	case "/location":
		return h.respond(h.selectLocation(arg)), nil
	case "/date":
		return h.respond(h.chooseDate(ctx, arg)), nil
	case "/slot":
		n, err := position(arg, len(h.conv.View().Slots))
		if err != nil {
			return h.respond(err), nil
		}
		return h.respond(h.booker.SelectSlot(n)), nil
	case "/book":
		info, err := parseContact(arg)
		if err != nil {
			return h.respond(err), nil
		}
		return h.respond(h.booker.Submit(ctx, info)), nil
	case "/cancel":
		h.booker.Cancel()
		return h.respond(nil), nil
	case "/offline":
		h.net.Set(false)
		return h.respond(nil), nil
	case "/online":
		h.net.Set(true)
		return h.respond(nil), nil
	case "/scroll":
		px, err := strconv.ParseFloat(arg, 64)
		if err != nil || math.IsNaN(px) || math.IsInf(px, 0) {
			return h.respond(fmt.Errorf("handler: scroll offset %q is not a number", arg)), nil
		}
		h.conv.Scroll(px)
		return Response{Output: Render(h.conv.View())}, nil
	default:
		return Response{Output: fmt.Sprintf("unknown command %s (try /help)", cmd)}, nil
	}
}

func (h *Handler) selectService(ctx context.Context, arg string) error {
	opts := h.conv.View().Services
	n, err := position(arg, len(opts))
	if err != nil {
		return err
	}
	return h.booker.SelectService(ctx, opts[n].ID)
}

func (h *Handler) selectLocation(arg string) error {
	opts := h.conv.View().Locations
	n, err := position(arg, len(opts))
	if err != nil {
		return err
	}
	return h.booker.SelectLocation(opts[n].ID)
}

func (h *Handler) chooseDate(ctx context.Context, arg string) error {
	date, err := time.ParseInLocation("2006-01-02", arg, h.loc)
	if err != nil {
		return fmt.Errorf("handler: date %q must look like 2006-01-02", arg)
	}
	return h.booker.ChooseDate(ctx, date)
}

// respond draws the widget and appends err, if any.
func (h *Handler) respond(err error) Response {
	out := Render(h.conv.View())
	if err != nil {
		out += "\n! " + err.Error()
	}
	return Response{Output: out}
}

// position converts a 1-based list number into an index.
func position(arg string, size int) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("handler: %q is not a list number", arg)
	}
	if n < 1 || n > size {
		return 0, fmt.Errorf("handler: choose a number between 1 and %d", size)
	}
	return n - 1, nil
}

func parseContact(arg string) (domain.ClientInfo, error) {
	parts := strings.Split(arg, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return domain.ClientInfo{}, errors.New("handler: usage /book name|email|phone[|notes]")
	}
	info := domain.ClientInfo{Name: parts[0], Email: parts[1], Phone: parts[2]}
	if len(parts) == 4 {
		info.Notes = parts[3]
	}
	return info, nil
}
