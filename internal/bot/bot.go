package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"memobot/internal/model"
	"memobot/internal/repository"
	"memobot/internal/service"
	"memobot/internal/srs"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageURL
)

const (
	cbRatePrefix    = "rate:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
)

const (
	btnSkip         = "⏭️ Skip"
	btnCancelDialog = "⏪ Cancel"
	menuLabelDue    = "⏰ Due"
	menuLabelAll    = "📋 All tasks"
	menuLabelAdd    = "➕ Add"
	menuLabelHelp   = "ℹ️ Help"
)

var ratingButtons = []struct {
	rating srs.Rating
	label  string
}{
	{srs.Hard, "💪 Hard"},
	{srs.Good, "👍 Good"},
	{srs.Reset, "🔁 Reset"},
}

type conversationState struct {
	stage conversationStage
	name  string
}

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Tasks is the command surface the bot drives.
type Tasks interface {
	ListAll(ctx context.Context) ([]model.Task, error)
	ListDue(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, name, url string) (*model.Task, error)
	GetTask(ctx context.Context, id uint) (*model.Task, error)
	DeleteTask(ctx context.Context, id uint) error
	Review(ctx context.Context, id uint, rating srs.Rating) (*model.Task, error)
	Today() string
}

// Reminders provides the due list snapshot for the daily push.
type Reminders interface {
	Due(ctx context.Context) (service.DueDigest, error)
}

// Bot aggregates Telegram API with services. It answers only the configured
// owner chat.
type Bot struct {
	api           API
	tasks         Tasks
	reminders     Reminders
	chatID        int64
	log           *slog.Logger
	conversations map[int64]conversationState
	mu            sync.Mutex
}

func New(token string, chatID int64, tasks Tasks, reminders Reminders, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := NewWithAPI(api, chatID, tasks, reminders, log)
	b.log.Info("bot authorized", slog.String("account", api.Self.UserName))
	return b, nil
}

// NewWithAPI builds a bot around an existing client.
func NewWithAPI(api API, chatID int64, tasks Tasks, reminders Reminders, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		api:           api,
		tasks:         tasks,
		reminders:     reminders,
		chatID:        chatID,
		log:           log.With(slog.String("component", "bot")),
		conversations: make(map[int64]conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.HandleUpdate(ctx, update)
	}

	return ctx.Err()
}

// HandleUpdate dispatches one update. Failures are logged, not returned, so a
// bad message cannot stop polling.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error("handle callback", slog.String("error", err.Error()))
		}
	case update.Message != nil:
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error("handle message", slog.String("error", err.Error()))
		}
	}
}

// SendDueReminder pushes the due list to the owner chat, split over as many
// messages as needed. Nothing is sent when no task is due.
func (b *Bot) SendDueReminder(ctx context.Context) error {
	digest, err := b.reminders.Due(ctx)
	if err != nil {
		return err
	}
	if digest.Empty() {
		b.log.Debug("nothing due, reminder skipped")
		return nil
	}
	return b.sendTaskChunks(b.chatID, digest.Header(), digest.Tasks, digest.Today)
}

func (b *Bot) authorized(chat *tgbotapi.Chat) bool {
	return chat != nil && chat.ID == b.chatID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.authorized(msg.Chat) {
		if msg.Chat != nil {
			b.log.Warn("ignoring message from foreign chat", slog.Int64("chat_id", msg.Chat.ID))
		}
		return nil
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(chatID)
		return b.sendText(chatID, "⏪ Cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info("command", slog.String("command", msg.Command()), slog.String("args", msg.CommandArguments()))
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(chatID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(chatID, "I did not get that. Send /add to track something new or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.sendText(chatID, helpText)
	case "tasks", "all":
		return b.sendAll(ctx, chatID)
	case "due":
		return b.sendDue(ctx, chatID)
	case "add":
		return b.handleAdd(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "review":
		return b.handleReview(ctx, msg)
	case "cancel":
		b.clearConversation(chatID)
		return b.sendText(chatID, "⏪ Cancelled.")
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /due - tasks due today or earlier\n" +
	"• /tasks - every task, latest due first\n" +
	"• /add &lt;name&gt; [url] - track something new (or /add alone for a dialog)\n" +
	"• /review &lt;id&gt; &lt;hard|good|reset&gt; - record a review\n" +
	"• /delete &lt;id&gt; - stop tracking a task\n" +
	"• /cancel - abort the current dialog\n\n" +
	"<b>Ratings</b>: hard and good push the task out further each time, reset brings it back tomorrow."

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := ""
	if msg.From != nil {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I remind you to revisit the things you are learning.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelDue):
		return true, b.sendDue(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelAll):
		return true, b.sendAll(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelAdd):
		return true, b.startAddConversation(msg.Chat.ID)
	case strings.ToLower(menuLabelHelp):
		return true, b.sendText(msg.Chat.ID, helpText)
	default:
		return false, nil
	}
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.startAddConversation(msg.Chat.ID)
	}
	name, url := splitNameURL(args)
	return b.finishTaskCreation(ctx, msg.Chat.ID, name, url)
}

func (b *Bot) startAddConversation(chatID int64) error {
	b.setConversation(chatID, conversationState{stage: stageName})
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> what should I call it?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state, ok := b.getConversation(chatID)
	if !ok {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The name cannot be empty. What should I call it?", cancelKeyboard())
		}
		state.name = text
		state.stage = stageURL
		b.setConversation(chatID, state)
		return b.sendWithReplyMarkup(chatID, "🔗 <b>Step 2:</b> send a link (or press «Skip»).", skipKeyboard())
	case stageURL:
		url := text
		if isSkipInput(text) {
			url = ""
		}
		b.clearConversation(chatID)
		return b.finishTaskCreation(ctx, chatID, state.name, url)
	default:
		b.clearConversation(chatID)
		return b.sendText(chatID, "Dialog reset. Try /add again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, name, url string) error {
	task, err := b.tasks.CreateTask(ctx, name, url)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTask) {
			return b.sendText(chatID, fmt.Sprintf("Cannot add that: %s", escape(err.Error())))
		}
		return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(task.Name)))
	if task.URL != "" {
		summary.WriteString(fmt.Sprintf("• <b>Link:</b> %s\n", escape(task.URL)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s", task.DueDate))
	return b.sendText(chatID, summary.String())
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the task ID: /delete 12")
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, taskID)
}

func (b *Bot) handleReview(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /review &lt;id&gt; &lt;hard|good|reset&gt;")
	}
	taskID, err := parseID(fields[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	rating, err := srs.ParseRating(fields[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Rating must be hard, good or reset.")
	}
	return b.reviewAndReport(ctx, msg.Chat.ID, taskID, rating)
}

func (b *Bot) reviewAndReport(ctx context.Context, chatID int64, taskID uint, rating srs.Rating) error {
	task, err := b.tasks.Review(ctx, taskID, rating)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return b.sendText(chatID, "Task not found or already deleted.")
		case errors.Is(err, srs.ErrInvalidRating):
			return b.sendText(chatID, "Rating must be hard, good or reset.")
		default:
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
	}

	text := fmt.Sprintf("%s «%s» rated <b>%s</b>\n📈 level %d · next review %s",
		ratingIcon(rating), escape(normalizeName(task.Name)), rating, task.Level, task.DueDate)
	return b.sendText(chatID, text)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return err
	}

	text := fmt.Sprintf("Delete task «%s» (#%d)? This cannot be undone.", escape(normalizeName(task.Name)), task.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(task.ID))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if err := b.tasks.DeleteTask(ctx, taskID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not delete the task: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(normalizeName(task.Name))))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil || !b.authorized(cb.Message.Chat) {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack", slog.String("error", err.Error()))
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbRatePrefix):
		taskID, rating, err := parseRateData(data)
		if err != nil {
			return nil
		}
		return b.reviewAndReport(ctx, chatID, taskID, rating)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID, err := parseID(strings.TrimPrefix(data, cbConfirmPrefix))
		if err != nil {
			return nil
		}
		return b.deleteTask(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "Kept it.")
	default:
		return nil
	}
}

func (b *Bot) sendDue(ctx context.Context, chatID int64) error {
	tasks, err := b.tasks.ListDue(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "🎉 Nothing due. Come back tomorrow.")
	}
	return b.sendTaskList(chatID, "⏰ <b>Due for review</b>", tasks)
}

func (b *Bot) sendAll(ctx context.Context, chatID int64) error {
	tasks, err := b.tasks.ListAll(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No tasks yet. Add one with /add.")
	}
	return b.sendTaskList(chatID, "📋 <b>All tasks</b>", tasks)
}

func (b *Bot) sendTaskList(chatID int64, title string, tasks []model.Task) error {
	return b.sendTaskChunks(chatID, title, tasks, b.tasks.Today())
}

// sendTaskChunks sends tasks under title, one message per chunk. Every
// message carries the buttons for its own tasks only.
func (b *Bot) sendTaskChunks(chatID int64, title string, tasks []model.Task, today string) error {
	chunks := chunkTasks(title, tasks, today)
	for i, chunk := range chunks {
		heading := title
		if len(chunks) > 1 {
			heading = fmt.Sprintf("%s (%d/%d)", title, i+1, len(chunks))
		}
		msg := tgbotapi.NewMessage(chatID, heading+"\n\n"+strings.TrimSpace(chunk.body))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = taskKeyboard(chunk.tasks)
		if _, err := b.api.Send(msg); err != nil {
			return fmt.Errorf("send task list part %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(chatID int64, state conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) (conversationState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.conversations[chatID]
	return state, ok
}

func (b *Bot) hasConversation(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[chatID]
	return ok
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func taskKeyboard(tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(ratingButtons)+1)
		for _, rb := range ratingButtons {
			label := fmt.Sprintf("#%d %s", task.ID, rb.label)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d:%d", cbRatePrefix, task.ID, rb.rating)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 %s", shortName(task.Name, 10)), fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)))
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Delete", fmt.Sprintf("%s%d", cbConfirmPrefix, taskID)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", fmt.Sprintf("%s%d", cbCancelPrefix, taskID)),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelDue),
			tgbotapi.NewKeyboardButton(menuLabelAll),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAdd),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseRateData(data string) (uint, srs.Rating, error) {
	parts := strings.Split(strings.TrimPrefix(data, cbRatePrefix), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed rate callback %q", data)
	}
	taskID, err := parseID(parts[0])
	if err != nil {
		return 0, 0, err
	}
	rating, err := srs.ParseRating(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return taskID, rating, nil
}

// splitNameURL treats a trailing link-looking word as the URL.
func splitNameURL(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if strings.Contains(last, "://") || strings.HasPrefix(strings.ToLower(last), "www.") {
			return strings.Join(fields[:len(fields)-1], " "), last
		}
	}
	return strings.Join(fields, " "), ""
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func ratingIcon(r srs.Rating) string {
	switch r {
	case srs.Hard:
		return "💪"
	case srs.Good:
		return "👍"
	default:
		return "🔁"
	}
}

func shortName(name string, maxLen int) string {
	clean := normalizeName(strings.ReplaceAll(name, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}
