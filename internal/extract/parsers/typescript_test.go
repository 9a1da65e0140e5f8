package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// Test Plan for TypeScript/JavaScript Parsers:
// - Parse standalone, exported, and generator function declarations
// - Extract arrow functions bound to const declarations
// - Parse class declarations with heritage (extends/implements)
// - Extract methods with qualified names, visibility, and constructor flag
// - Capture decorators on methods and doc comments above functions
// - Parse default, named, namespace, and type-only imports with aliases
// - Parse export declarations, export clauses with aliases, and re-exports
// - Record call sites: direct, member, and computed subscript calls
// - Verify accurate line numbers for all extracted facts
// - Report syntax errors without failing the parse
// - Handle empty files without errors
// - Reuse the TypeScript grammar for JavaScript files

const tsSample = `import express from 'express';
import { findUser, saveUser as persistUser } from './repo';
import * as utils from '../utils';
import type { Config } from './config';

/** Loads one user by id. */
function loadUser(id: string): User {
  return findUser(id);
}

export function getUser(id: string): User {
  return loadUser(id);
}

const listUsers = async (filter: string) => {
  return utils.query(filter);
};

function* walkUsers(limit = 10, ...rest: string[]) {
  yield limit;
}

export class UserService extends BaseService implements Queryable {
  constructor(private db: Database) {}

  @Get('/users/:id')
  async fetch(id: string): Promise<User> {
    return this.db.load(id);
  }

  private purge(): void {
    handlers['flush']();
  }
}

export { listUsers, getUser as fetchUser };
export { helper } from './helpers';
export * from './types';
`

func TestTypeScriptParser_Functions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	result, err := parser.ParseFile(ctx, "src/users.ts", []byte(tsSample))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "typescript", result.Language)
	assert.Equal(t, "src/users.ts", result.Path)
	assert.Empty(t, result.Errors)

	// Four top-level functions plus three class methods.
	assert.Len(t, result.Functions, 7)

	// Test: plain function declaration with doc comment
	loadUser := findFunctionByName(result.Functions, "loadUser")
	require.NotNil(t, loadUser, "loadUser should be extracted")
	assert.Equal(t, "loadUser", loadUser.QualifiedName)
	assert.False(t, loadUser.Exported)
	assert.Equal(t, "Loads one user by id.", loadUser.DocComment)
	assert.Equal(t, "User", loadUser.ReturnType)
	assert.Equal(t, 7, loadUser.StartLine)
	assert.Equal(t, 9, loadUser.EndLine)
	require.Len(t, loadUser.Parameters, 1)
	assert.Equal(t, "id", loadUser.Parameters[0].Name)
	assert.Equal(t, "string", loadUser.Parameters[0].Type)

	// Test: exported function declaration
	getUser := findFunctionByName(result.Functions, "getUser")
	require.NotNil(t, getUser, "getUser should be extracted")
	assert.True(t, getUser.Exported)
	assert.Empty(t, getUser.DocComment)
	assert.Equal(t, 11, getUser.StartLine)

	// Test: arrow function bound to a const
	listUsers := findFunctionByName(result.Functions, "listUsers")
	require.NotNil(t, listUsers, "listUsers arrow binding should be extracted")
	assert.True(t, listUsers.Async)
	assert.False(t, listUsers.Exported)
	assert.Equal(t, 15, listUsers.StartLine)
	assert.Equal(t, 17, listUsers.EndLine)
	require.Len(t, listUsers.Parameters, 1)
	assert.Equal(t, "filter", listUsers.Parameters[0].Name)

	// Test: generator function with default and rest parameters
	walkUsers := findFunctionByName(result.Functions, "walkUsers")
	require.NotNil(t, walkUsers, "walkUsers should be extracted")
	assert.True(t, walkUsers.Generator)
	assert.Equal(t, 19, walkUsers.StartLine)
	assert.Equal(t, 21, walkUsers.EndLine)
	require.Len(t, walkUsers.Parameters, 2)
	assert.Equal(t, "limit", walkUsers.Parameters[0].Name)
	assert.Equal(t, "10", walkUsers.Parameters[0].Default)
	assert.Equal(t, "rest", walkUsers.Parameters[1].Name)
	assert.True(t, walkUsers.Parameters[1].Rest)
}

func TestTypeScriptParser_ClassAndMethods(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	result, err := parser.ParseFile(ctx, "src/users.ts", []byte(tsSample))
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Classes, 1)
	service := result.Classes[0]
	assert.Equal(t, "UserService", service.Name)
	assert.True(t, service.Exported)
	assert.False(t, service.Abstract)
	assert.Equal(t, "BaseService", service.Extends)
	assert.Equal(t, []string{"Queryable"}, service.Implements)
	assert.Equal(t, 23, service.StartLine)
	assert.Equal(t, 34, service.EndLine)

	// Test: constructor with parameter property
	ctor := findFunctionByQualifiedName(result.Functions, "UserService.constructor")
	require.NotNil(t, ctor, "constructor should be extracted")
	assert.True(t, ctor.Constructor)
	assert.Equal(t, 24, ctor.StartLine)
	require.Len(t, ctor.Parameters, 1)
	assert.Equal(t, "db", ctor.Parameters[0].Name)
	assert.Equal(t, "Database", ctor.Parameters[0].Type)

	// Test: decorated method keeps its decorator name without arguments
	fetch := findFunctionByQualifiedName(result.Functions, "UserService.fetch")
	require.NotNil(t, fetch, "fetch method should be extracted")
	assert.True(t, fetch.Exported)
	assert.False(t, fetch.Constructor)
	assert.Contains(t, fetch.Decorators, "@Get")
	assert.Equal(t, "Promise<User>", fetch.ReturnType)
	assert.Equal(t, 29, fetch.EndLine)

	// Test: private methods are not exported
	purge := findFunctionByQualifiedName(result.Functions, "UserService.purge")
	require.NotNil(t, purge, "purge method should be extracted")
	assert.False(t, purge.Exported)
	assert.Equal(t, "void", purge.ReturnType)
	assert.Empty(t, purge.Decorators)
	assert.Equal(t, 31, purge.StartLine)
}

func TestTypeScriptParser_Imports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	result, err := parser.ParseFile(ctx, "src/users.ts", []byte(tsSample))
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Imports, 4)

	// Test: default import
	express := findImportBySource(result.Imports, "express")
	require.NotNil(t, express)
	assert.Equal(t, "express", express.Default)
	assert.Equal(t, 1, express.Line)

	// Test: named imports bind the alias, not the original name
	repo := findImportBySource(result.Imports, "./repo")
	require.NotNil(t, repo)
	assert.Equal(t, []string{"findUser", "persistUser"}, repo.Named)
	assert.Equal(t, 2, repo.Line)

	// Test: namespace import
	utils := findImportBySource(result.Imports, "../utils")
	require.NotNil(t, utils)
	assert.Equal(t, "utils", utils.Namespace)

	// Test: type-only import
	config := findImportBySource(result.Imports, "./config")
	require.NotNil(t, config)
	assert.True(t, config.TypeOnly)
	assert.Equal(t, []string{"Config"}, config.Named)
}

func TestTypeScriptParser_Exports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	result, err := parser.ParseFile(ctx, "src/users.ts", []byte(tsSample))
	require.NoError(t, err)
	require.NotNil(t, result)

	// getUser, UserService, listUsers, fetchUser, helper. The bare
	// "export * from" re-export names nothing and records nothing.
	require.Len(t, result.Exports, 5)

	getUser := findExportByName(result.Exports, "getUser")
	require.NotNil(t, getUser)
	assert.Equal(t, 11, getUser.Line)

	service := findExportByName(result.Exports, "UserService")
	require.NotNil(t, service)
	assert.Equal(t, 23, service.Line)

	// Test: aliased export records both names
	fetchUser := findExportByName(result.Exports, "fetchUser")
	require.NotNil(t, fetchUser)
	assert.Equal(t, "getUser", fetchUser.OriginalName)
	assert.Equal(t, 36, fetchUser.Line)

	listUsers := findExportByName(result.Exports, "listUsers")
	require.NotNil(t, listUsers)
	assert.Empty(t, listUsers.OriginalName)

	// Test: re-export keeps its source module
	helper := findExportByName(result.Exports, "helper")
	require.NotNil(t, helper)
	assert.Equal(t, "./helpers", helper.FromSource)
	assert.Equal(t, 37, helper.Line)
}

func TestTypeScriptParser_Calls(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	result, err := parser.ParseFile(ctx, "src/users.ts", []byte(tsSample))
	require.NoError(t, err)
	require.NotNil(t, result)

	// Test: direct call records the bare identifier
	findUserCall := findCallByCallee(result.Calls, "findUser")
	require.NotNil(t, findUserCall)
	assert.Empty(t, findUserCall.Receiver)
	assert.Equal(t, 1, findUserCall.ArgCount)
	assert.Equal(t, 8, findUserCall.Line)

	// Test: member call splits property and object
	query := findCallByCallee(result.Calls, "query")
	require.NotNil(t, query)
	assert.Equal(t, "utils", query.Receiver)
	assert.Equal(t, 16, query.Line)

	// Test: chained member call keeps the full receiver expression
	load := findCallByCallee(result.Calls, "load")
	require.NotNil(t, load)
	assert.Equal(t, "this.db", load.Receiver)
	assert.Equal(t, 28, load.Line)

	// Test: computed call keeps its full text so resolution can classify
	// it as dynamic
	flush := findCallByCallee(result.Calls, "handlers['flush']")
	require.NotNil(t, flush)
	assert.Equal(t, "handlers", flush.Receiver)
	assert.Equal(t, 0, flush.ArgCount)
	assert.Equal(t, 32, flush.Line)
}

func TestTypeScriptParser_AbstractClass(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	src := `abstract class Shape {
  abstract area(): number;
}
`
	result, err := parser.ParseFile(ctx, "src/shape.ts", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Classes, 1)
	assert.Equal(t, "Shape", result.Classes[0].Name)
	assert.True(t, result.Classes[0].Abstract)

	// Abstract method signatures have no body and are not definitions.
	assert.Empty(t, result.Functions)
}

func TestTypeScriptParser_MalformedSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	src := `function broken( {
  return 1;
`
	result, err := parser.ParseFile(ctx, "src/broken.ts", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, result)

	// Test: syntax errors are reported, not fatal
	assert.NotEmpty(t, result.Errors)
}

func TestTypeScriptParser_EmptySource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewTypeScriptParser()

	result, err := parser.ParseFile(ctx, "src/empty.ts", []byte(""))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Empty(t, result.Functions)
	assert.Empty(t, result.Classes)
	assert.Empty(t, result.Imports)
	assert.Empty(t, result.Calls)
	assert.Empty(t, result.Errors)
}

func TestJavaScriptParser_SharesGrammar(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parser := NewJavaScriptParser()

	src := `const add = (a, b) => a + b;

function greet(name) {
  return format(name);
}
`
	result, err := parser.ParseFile(ctx, "src/app.js", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "javascript", result.Language)

	add := findFunctionByName(result.Functions, "add")
	require.NotNil(t, add, "add arrow binding should be extracted")
	require.Len(t, add.Parameters, 2)
	assert.Equal(t, "a", add.Parameters[0].Name)
	assert.Equal(t, "b", add.Parameters[1].Name)

	greet := findFunctionByName(result.Functions, "greet")
	require.NotNil(t, greet, "greet should be extracted")
	assert.Equal(t, 3, greet.StartLine)
	assert.Equal(t, 5, greet.EndLine)

	format := findCallByCallee(result.Calls, "format")
	require.NotNil(t, format)
	assert.Equal(t, 4, format.Line)
}

func findFunctionByName(functions []extraction.FunctionInfo, name string) *extraction.FunctionInfo {
	for i := range functions {
		if functions[i].Name == name {
			return &functions[i]
		}
	}
	return nil
}

func findFunctionByQualifiedName(functions []extraction.FunctionInfo, qualifiedName string) *extraction.FunctionInfo {
	for i := range functions {
		if functions[i].QualifiedName == qualifiedName {
			return &functions[i]
		}
	}
	return nil
}

func findClassByName(classes []extraction.ClassInfo, name string) *extraction.ClassInfo {
	for i := range classes {
		if classes[i].Name == name {
			return &classes[i]
		}
	}
	return nil
}

func findImportBySource(imports []extraction.ImportInfo, source string) *extraction.ImportInfo {
	for i := range imports {
		if imports[i].Source == source {
			return &imports[i]
		}
	}
	return nil
}

func findExportByName(exports []extraction.ExportInfo, name string) *extraction.ExportInfo {
	for i := range exports {
		if exports[i].Name == name {
			return &exports[i]
		}
	}
	return nil
}

func findCallByCallee(calls []extraction.CallSite, callee string) *extraction.CallSite {
	for i := range calls {
		if calls[i].Callee == callee {
			return &calls[i]
		}
	}
	return nil
}
