package inmemdb

import (
	"sync"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/grading"
	"github.com/trezcool/kazi/core/task"
)

// DB is an in-memory stand-in for the postgres storage, used in tests and
// local tinkering. One RWMutex guards all tables; the task repository's InTx
// takes the write lock for the whole closure, which gives the same
// serialization the row lock gives in postgres.
type DB struct {
	mutex sync.RWMutex
	pks   map[string]int

	courses     map[int]*course.Course
	milestones  map[int]*course.Milestone
	teams       map[int]*course.Team
	developers  map[int]*course.Developer
	supervisors map[int]*course.Supervisor
	members     map[int]map[int]bool // teamID -> set of developerIDs

	tasks    map[int]*task.Task
	votes    map[int]*task.Vote
	comments map[int]*task.Comment
	records  map[int]*task.ActionRecord
	diffs    map[int]*task.TaskDifference

	pools     map[int]*grading.PointPool
	intervals map[int]*grading.GraphInterval

	subscriptions map[string]*core.PushSubscription
}

func NewDB() *DB {
	return &DB{
		pks:           make(map[string]int),
		courses:       make(map[int]*course.Course),
		milestones:    make(map[int]*course.Milestone),
		teams:         make(map[int]*course.Team),
		developers:    make(map[int]*course.Developer),
		supervisors:   make(map[int]*course.Supervisor),
		members:       make(map[int]map[int]bool),
		tasks:         make(map[int]*task.Task),
		votes:         make(map[int]*task.Vote),
		comments:      make(map[int]*task.Comment),
		records:       make(map[int]*task.ActionRecord),
		diffs:         make(map[int]*task.TaskDifference),
		pools:         make(map[int]*grading.PointPool),
		intervals:     make(map[int]*grading.GraphInterval),
		subscriptions: make(map[string]*core.PushSubscription),
	}
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK(table string) int {
	db.pks[table]++
	return db.pks[table]
}
