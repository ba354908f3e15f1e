package command

import (
	"fmt"
	"strings"

	"flatctl/internal/protocol"
	"flatctl/internal/session"
)

// BootstrapCommand is the credential command every session starts with.
const BootstrapCommand = "change_user"

// Info describes a command for help.
type Info struct {
	Name    string
	Usage   string
	Summary string
}

var builtins = []struct {
	Info
	factory Factory
}{
	{Info{"help", "", "show the available commands"}, nil},
	{Info{"info", "", "show information about the collection"}, newInfo},
	{Info{"show", "", "show every flat ordered by area"}, newShow},
	{Info{"add", "", "add a new flat"}, stagedFactory(false, addFinish)},
	{Info{"add_random", "[count]", "add randomly generated flats"}, newAddRandom},
	{Info{"update", "<id>", "update the flat with the given id"}, stagedFactory(true, updateFinish)},
	{Info{"remove_by_id", "<id>", "remove the flat with the given id"}, newRemoveByID},
	{Info{"get_by_id", "<id>", "show the flat with the given id"}, newGetByID},
	{Info{"clear", "", "remove every flat you own"}, newClear},
	{Info{"save", "", "save the collection to the data file"}, newSave},
	{Info{"execute_script", "<file>", "run the commands in a script file"}, newExecuteScript},
	{Info{"exit", "", "end the session"}, newExit},
	{Info{"add_if_max", "", "add a new flat if its area is the largest"}, stagedFactory(false, addIfMaxFinish)},
	{Info{"remove_greater", "", "remove your flats larger than the given one"}, stagedFactory(false, removeGreaterFinish)},
	{Info{"remove_lower", "", "remove your flats smaller than the given one"}, stagedFactory(false, removeLowerFinish)},
	{Info{"max_by_creation_date", "", "show the most recently created flat"}, newMaxByCreationDate},
	{Info{"print_descending", "", "show every flat in descending order"}, newPrintDescending},
	{Info{"print_unique_time_to_metro_by_transport", "", "show the distinct times to metro"}, newUniqueTimeToMetro},
	{Info{"log_in", "[name]", "log in or register"}, newLogIn},
	{Info{BootstrapCommand, "[name]", "switch the local user"}, newChangeUser},
	{Info{"stats", "", "show server counters"}, newStats},
}

// RegisterBuiltins registers every built-in command with d.
func RegisterBuiltins(d *Dispatcher) {
	for _, b := range builtins {
		factory := b.factory
		if b.Name == "help" {
			factory = helpFactory(d)
		}
		d.Register(b.Name, factory)
	}
}

// Describe returns the help entry for name.
func Describe(name string) (Info, bool) {
	for _, b := range builtins {
		if b.Name == name {
			return b.Info, true
		}
	}
	return Info{}, false
}

func helpFactory(d *Dispatcher) Factory {
	return func(*session.Session) Command {
		return oneShot(func(req protocol.Request, _ string) protocol.Response {
			var b strings.Builder
			names := d.Names()
			for i, name := range names {
				info, ok := Describe(name)
				if !ok {
					info = Info{Name: name}
				}
				usage := strings.TrimSpace(info.Name + " " + info.Usage)
				fmt.Fprintf(&b, "%-45s %s", usage, info.Summary)
				if i < len(names)-1 {
					b.WriteByte('\n')
				}
			}
			return text(req, b.String())
		})
	}
}
