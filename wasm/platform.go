package wasm

import "sort"

// Host functions provided by the device runtime, grouped by import module.
var hostFunctions = map[string][]string{
	"graphics": {
		"clear_screen", "set_color", "draw_point", "draw_line", "draw_rect",
		"draw_rounded_rect", "draw_circle", "draw_ellipse", "draw_triangle",
		"draw_arc", "draw_sector", "draw_text", "draw_qr", "draw_image",
		"draw_sub_image", "set_canvas", "unset_canvas",
	},
	"audio": {
		"add_sine", "add_square", "add_sawtooth", "add_triangle", "add_noise",
		"add_empty", "add_zero", "add_file", "add_mix", "add_all_for_one",
		"add_gain", "add_loop", "add_concat", "add_pan", "add_mute", "add_pause",
		"add_track_position", "add_low_pass", "add_high_pass", "add_take_left",
		"add_take_right", "add_swap", "add_clip", "mod_linear", "mod_hold",
		"mod_sine", "reset", "reset_all", "clear",
	},
	"input": {"read_pad", "read_buttons"},
	"menu":  {"add_menu_item", "remove_menu_item", "open_menu"},
	"misc": {
		"log_debug", "log_error", "set_seed", "get_random", "get_name",
		"get_settings", "restart", "quit",
	},
	"fs":    {"get_file_size", "load_file", "dump_file", "remove_file"},
	"stats": {"add_progress", "add_score"},

	// Gated modules: available only when the app declares the capability.
	"net":  {"get_me", "get_peers", "save_stash", "load_stash"},
	"sudo": {"list_dirs", "list_dirs_buf_size", "list_files", "list_files_buf_size", "get_file_size", "load_file", "run_app"},
}

// GatedCapabilities are host modules that must be declared as capabilities.
var GatedCapabilities = []string{"net", "sudo"}

// EntryPoints are the callbacks the runtime looks for in a module's exports.
var EntryPoints = []string{"boot", "cheat", "handle_menu", "render", "render_line", "update"}

// HostImports returns the sorted allow-list of host functions for an app
// declaring the given capabilities.
func HostImports(capabilities []string) []string {
	gated := map[string]bool{}
	for _, c := range GatedCapabilities {
		gated[c] = true
	}
	declared := map[string]bool{}
	for _, c := range capabilities {
		declared[c] = true
	}

	var out []string
	for module, fns := range hostFunctions {
		if gated[module] && !declared[module] {
			continue
		}
		for _, fn := range fns {
			out = append(out, module+"."+fn)
		}
	}
	sort.Strings(out)
	return out
}

// IsCapability reports whether name is a capability an app can declare.
func IsCapability(name string) bool {
	for _, c := range GatedCapabilities {
		if c == name {
			return true
		}
	}
	return false
}
