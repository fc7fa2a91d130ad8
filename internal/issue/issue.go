// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	StagingNotEmptyId Id = iota + 1
	SourceTreeMissingId
	GrammarNameCollisionId
	CompilerNotFoundId
	CompileFailedId
	RoutingFailedId
	ConfigLoadFailedId
	InvalidLayoutId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	antlrToolDocs = HttpLink("https://github.com/antlr/antlr4/blob/master/doc/tool-options.md")

	stagingNotEmptyIssue = &Issue{
		id: StagingNotEmptyId,
		mdMsg: `
# Staging directory is not empty!

The staging directory is reserved for gramflow. It is **cleared on every
generation**, so any file found there before a run would be lost.
The run was aborted before anything was touched.

## Things you can try:
- Move any files you want to keep out of the staging directory
- Remove all remaining files from it and run again:
~~~
$ gramflow generate
~~~
- Keep grammar sources under ` + "`paths.source`" + ` only, never under ` + "`paths.staging`",
	}

	sourceTreeMissingIssue = &Issue{
		id: SourceTreeMissingId,
		mdMsg: `
# Grammar source directory not found!

gramflow reads grammar files from the directory configured as ` + "`paths.source`" + `.

## Things you can try:
- Create the directory and move your ` + "`.g4`" + ` files into it
- Point ` + "`paths.source`" + ` at the right place in ` + "`gramflow.cue`" + `
- Run from the project root, or pass ` + "`--dir`",
	}

	grammarNameCollisionIssue = &Issue{
		id: GrammarNameCollisionId,
		mdMsg: `
# Two grammar files share the same name!

Grammar files are flattened into a single directory before compiling, so
**every grammar file name must be unique** across all folders of the source tree,
even when the files live in different packages.

## Things you can try:
- Rename one of the files (and the grammar declared in it)
- Disable ` + "`sync.strict_names`" + ` to fall back to last-copied-wins`,
	}

	compilerNotFoundIssue = &Issue{
		id: CompilerNotFoundId,
		mdMsg: `
# Grammar compiler not found!

gramflow runs the grammar compiler as an external process and could not start it.

## Things you can try:
- Install a Java runtime and make sure ` + "`java`" + ` is on your PATH
- Download the complete ANTLR jar and set ` + "`compiler.jar`" + `
- Or set ` + "`compiler.command`" + ` to a wrapper script, e.g. ` + "`antlr4`",
		extLinks: []HttpLink{antlrToolDocs},
	}

	compileFailedIssue = &Issue{
		id: CompileFailedId,
		mdMsg: `
# Grammar compilation failed!

The compiler reported errors; its diagnostics are printed above.
Nothing was routed into the output tree and the staging directory was removed.

## Things you can try:
- Fix the reported grammar errors in the source tree
- Check that grammars importing each other have distinct file names
- Re-run with ` + "`--verbose`" + ` to see the exact compiler command`,
		extLinks: []HttpLink{antlrToolDocs},
	}

	routingFailedIssue = &Issue{
		id: RoutingFailedId,
		mdMsg: `
# Failed to move generated sources!

Routing is not transactional: some generated files may already have been
moved into the output tree while others were not.

## Things you can try:
- Check permissions of the output directories
- Recover from a clean state:
~~~
$ gramflow clean
$ gramflow generate --force
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The project file (` + "`gramflow.cue`" + `, ` + "`gramflow.toml`" + ` or ` + "`gramflow.yaml`" + `) could not be read or is invalid.

## Things you can try:
- Print the effective configuration:
~~~
$ gramflow config show
~~~
- Create a fresh default file:
~~~
$ gramflow init
~~~`,
	}

	invalidLayoutIssue = &Issue{
		id: InvalidLayoutId,
		mdMsg: `
# Invalid directory layout!

The staging directory must be a directory of its own: it may not be the
source tree, the raw output or the final output, and it may not contain the
source tree, since it is deleted after every run.

## Things you can try:
- Review the ` + "`paths`" + ` section of your project file
- Run ` + "`gramflow layout`" + ` to see the resolved directories`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

gramflow could not read or write one of the pipeline directories.

## Things you can try:
- Check ownership and permissions of the source, staging and output directories
- Make sure no other build is writing to the same directories`,
	}

	issues = map[Id]*Issue{
		stagingNotEmptyIssue.Id():      stagingNotEmptyIssue,
		sourceTreeMissingIssue.Id():    sourceTreeMissingIssue,
		grammarNameCollisionIssue.Id(): grammarNameCollisionIssue,
		compilerNotFoundIssue.Id():     compilerNotFoundIssue,
		compileFailedIssue.Id():        compileFailedIssue,
		routingFailedIssue.Id():        routingFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		invalidLayoutIssue.Id():        invalidLayoutIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
