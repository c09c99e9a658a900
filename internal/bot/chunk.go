package bot

import (
	"unicode/utf16"

	"memobot/internal/model"
	"memobot/internal/service"
)

const (
	// maxMessageLen is Telegram's text limit, counted in UTF-16 code units.
	maxMessageLen = 4096
	// maxTasksPerMessage keeps each inline keyboard well under Telegram's
	// button limit (four buttons per task).
	maxTasksPerMessage = 20
	// partSuffixReserve covers the " (i/n)" suffix and the blank line after
	// the heading.
	partSuffixReserve = 24
)

type taskChunk struct {
	body  string
	tasks []model.Task
}

// chunkTasks groups rendered tasks so that title plus one chunk always fits a
// single message.
func chunkTasks(title string, tasks []model.Task, today string) []taskChunk {
	budget := maxMessageLen - messageLen(title) - partSuffixReserve

	var (
		chunks []taskChunk
		cur    taskChunk
		used   int
	)
	for _, task := range tasks {
		entry := service.FormatTaskHTML(task, today)
		n := messageLen(entry)
		if len(cur.tasks) > 0 && (len(cur.tasks) >= maxTasksPerMessage || used+n > budget) {
			chunks = append(chunks, cur)
			cur, used = taskChunk{}, 0
		}
		cur.body += entry
		cur.tasks = append(cur.tasks, task)
		used += n
	}
	if len(cur.tasks) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func messageLen(s string) int {
	return len(utf16.Encode([]rune(s)))
}
