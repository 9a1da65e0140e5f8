package graph

import "strings"

// Call shapes the resolver refuses to guess at. Classification is purely
// syntactic and runs before any index lookup; a match marks the reference
// unresolved with confidence zero and the matching reason.

var evalNames = map[string]bool{
	"eval": true, "exec": true, "execfile": true, "compile": true,
	"Function": true, "instance_eval": true, "class_eval": true,
	"module_eval": true,
}

var reflectionNames = map[string]bool{
	"apply": true, "call": true, "bind": true, "invoke": true,
	"getattr": true, "setattr": true, "send": true, "__send__": true,
	"public_send": true, "call_user_func": true,
	"call_user_func_array": true, "const_get": true,
	"instance_variable_get": true, "method_missing": true,
}

var dispatchNames = map[string]bool{
	"emit": true, "dispatch": true, "trigger": true, "publish": true,
	"broadcast": true, "notify": true,
}

var pluginCallees = map[string]bool{
	"doAction": true, "do_action": true, "applyFilters": true,
	"apply_filters": true, "runHook": true, "run_hook": true,
	"callHook": true, "invokeHook": true,
}

var pluginReceivers = map[string]bool{
	"hooks": true, "plugins": true, "registry": true, "middleware": true,
	"extensions": true,
}

// classifyDynamic reports whether a call shape is inherently dynamic and,
// if so, which closed-set reason applies.
func classifyDynamic(ref *CallReference, caller *FunctionRecord) (string, bool) {
	callee := ref.CalleeName

	// Subscript and variable-function callees have no static name.
	if strings.ContainsAny(callee, "[($") {
		return UnresolvedComputedName, true
	}

	if evalNames[callee] {
		return UnresolvedEval, true
	}

	if reflectionNames[callee] {
		return UnresolvedReflection, true
	}

	if ref.Receiver == "super" {
		return UnresolvedDynamicDispatch, true
	}

	if pluginCallees[callee] || pluginReceivers[receiverRoot(ref.Receiver)] {
		return UnresolvedPluginSystem, true
	}

	if dispatchNames[callee] {
		return UnresolvedDynamicDispatch, true
	}

	// A call through one of the caller's own parameters targets whatever
	// was passed in.
	if caller != nil {
		root := receiverRoot(ref.Receiver)
		for _, param := range caller.Parameters {
			if param.Name == "" {
				continue
			}
			if ref.Receiver == "" && callee == param.Name {
				return UnresolvedHigherOrder, true
			}
			if root != "" && root == param.Name {
				return UnresolvedHigherOrder, true
			}
		}
	}

	return "", false
}

// receiverRoot returns the first segment of a receiver expression:
// "app.config" yields "app".
func receiverRoot(receiver string) string {
	if receiver == "" {
		return ""
	}
	for i := 0; i < len(receiver); i++ {
		switch receiver[i] {
		case '.', '(', '[', ':', '-':
			return receiver[:i]
		}
	}
	return receiver
}
