package datarecording

import (
	"os"
	"strings"
	"time"

	"github.com/rs/xid"
)

// ExecInfoTable is the table that describes the program executions that wrote
// to a database.
const ExecInfoTable = "exec_info"

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	ExecID   string
	Property string
	Value    string
}

// execRecorder records when and how the program that owns a recorder ran.
type execRecorder struct {
	id       string
	recorder DataRecorder
	entries  []ExecInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	return &execRecorder{
		id:       xid.New().String(),
		recorder: recorder,
	}
}

// Start notes the start time, the command and the working directory.
func (e *execRecorder) Start() error {
	err := e.recorder.CreateTable(ExecInfoTable, ExecInfo{})
	if err != nil {
		return err
	}

	e.add("Start Time", now())
	e.add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err == nil {
		e.add("Working Directory", cwd)
	}

	return nil
}

// End writes the collected properties along with the end time.
func (e *execRecorder) End() error {
	e.add("End Time", now())

	for _, entry := range e.entries {
		err := e.recorder.InsertData(ExecInfoTable, entry)
		if err != nil {
			return err
		}
	}

	e.entries = nil

	return nil
}

func (e *execRecorder) add(property, value string) {
	e.entries = append(e.entries, ExecInfo{
		ExecID:   e.id,
		Property: property,
		Value:    value,
	})
}

func now() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
