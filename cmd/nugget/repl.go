package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"nugget/internal/chat"
	"nugget/internal/convo"
	"nugget/internal/di"
	"nugget/internal/exec"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

// repl drives the chat service from a terminal. A loaded CSV switches the
// session to file analysis until /ga4 drops it again.
type repl struct {
	container *di.Container
	convID    string
	table     *exec.Table
	tableName string
	debug     bool
}

func newREPL(container *di.Container, debug bool) *repl {
	return &repl{
		container: container,
		convID:    "repl-" + logging.NewLogID(),
		debug:     debug,
	}
}

// run opens the interactive prompt with history and arrow-key support.
func (r *repl) run() error {
	fmt.Printf("%s | 한국어로 분석 질문을 입력하세요.\n", bold("nugget "+version))
	fmt.Println(gray("'exit'로 종료 · '/file <경로>'로 CSV 분석 · '/ga4'로 복귀 · '/result'로 마지막 응답"))
	fmt.Println()

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            bold("nugget> "),
		HistoryFile:       filepath.Join(homeDir, ".nugget-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit" || line == "q":
			return nil
		case strings.HasPrefix(line, "/"):
			r.command(line)
		default:
			r.answer(line)
		}
	}
	return nil
}

// answerOnce handles one-shot mode: answer a single question and exit
// non-zero when the turn itself failed.
func (r *repl) answerOnce(question string) error {
	env := r.handle(question)
	r.print(env)
	if env.Status == chat.StatusError {
		return fmt.Errorf("turn failed: %s", env.Message)
	}
	return nil
}

func (r *repl) answer(question string) {
	r.print(r.handle(question))
}

func (r *repl) handle(question string) *chat.Envelope {
	req := chat.Request{
		ConversationID: r.convID,
		Question:       question,
		PropertyID:     r.container.Config.Property,
	}
	if r.table != nil {
		req.Source = convo.SourceFile
		req.Table = r.table
	}
	return r.container.Chat.Handle(context.Background(), req)
}

func (r *repl) command(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/file":
		if len(fields) < 2 {
			fmt.Println(yellow("사용법: /file <CSV 경로>"))
			return
		}
		r.loadFile(fields[1])
	case "/ga4":
		r.table = nil
		r.tableName = ""
		fmt.Println(green("분석 대상을 GA4 데이터로 전환했습니다."))
	case "/result":
		r.showLastResult()
	default:
		fmt.Println(yellow("알 수 없는 명령입니다: " + fields[0]))
	}
}

// showLastResult re-prints the previous turn's stored reply without
// running the pipeline again.
func (r *repl) showLastResult() {
	source := convo.SourceAnalytics
	if r.table != nil {
		source = convo.SourceFile
	}
	raw, err := r.container.Store.LoadLastResult(context.Background(), r.convID, source)
	if err != nil {
		fmt.Println(yellow("다시 표시할 응답이 없습니다."))
		return
	}
	var env chat.Envelope
	if err := jsonx.Unmarshal(raw, &env); err != nil {
		fmt.Printf("%s %v\n", red("저장된 응답을 해석할 수 없습니다:"), err)
		return
	}
	r.print(&env)
}

func (r *repl) loadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("%s %v\n", red("파일을 열 수 없습니다:"), err)
		return
	}
	defer f.Close()

	table, err := exec.FromCSV(f)
	if err != nil {
		fmt.Printf("%s %v\n", red("CSV를 읽을 수 없습니다:"), err)
		return
	}
	r.table = table
	r.tableName = filepath.Base(path)
	fmt.Printf("%s %s (%d행, %d열)\n", green("불러왔습니다:"), r.tableName, table.Len(), len(table.Columns))
}

func (r *repl) print(env *chat.Envelope) {
	fmt.Println()
	switch env.Status {
	case chat.StatusOK:
		fmt.Println(env.Message)
	case chat.StatusPartialError:
		fmt.Println(yellow(env.Message))
	case chat.StatusClarify:
		fmt.Println(cyan(env.Message))
	default:
		fmt.Println(red(env.Message))
	}

	if meta := metaLine(env); meta != "" {
		fmt.Println(gray(meta))
	}
	if len(env.Followups) > 0 {
		fmt.Println(gray("추천 질문: " + strings.Join(env.Followups, " | ")))
	}
	if r.debug {
		if raw, err := jsonx.MarshalIndent(env, "", "  "); err == nil {
			fmt.Println(gray(string(raw)))
		}
	}
	fmt.Println()
}

func metaLine(env *chat.Envelope) string {
	parts := make([]string, 0, 2)
	if env.Account != "" {
		parts = append(parts, env.Account)
	}
	if env.Period != "" {
		parts = append(parts, env.Period)
	}
	return strings.Join(parts, "  ")
}
