// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	AssemblyNotFoundId Id = iota + 1
	NotAnAssemblyId
	MalformedMetadataId
	ConfigLoadFailedId
	InvalidArgumentsId
	PermissionDeniedId
)

type (
	// Id identifies a known issue.
	Id int

	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation or reference URL.
	HttpLink string

	// Issue is a known failure mode with Markdown remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

var (
	render = glamour.Render

	assemblyNotFoundIssue = &Issue{
		id: AssemblyNotFoundId,
		mdMsg: `
# Assembly not found

The path given with ` + "`--assembly`" + ` does not exist.

## Things you can try:
- Check the spelling of the path
- Pass the application's entry assembly, usually the ` + "`.exe`" + ` next to its dependencies:
~~~
$ asmconflicts -a ./bin/Release/MyApp.exe
~~~`,
	}

	notAnAssemblyIssue = &Issue{
		id: NotAnAssemblyId,
		mdMsg: `
# Not a .NET assembly

The file is not a PE image with a CLI header, or it is a module without an
assembly manifest. Native DLLs and netmodules cannot be analyzed.

## Things you can try:
- Point ` + "`--assembly`" + ` at the managed entry assembly of the application
- For .NET Core and later apps, use ` + "`MyApp.dll`" + `, not the native ` + "`MyApp.exe`" + ` host`,
		extLinks: []HttpLink{"https://learn.microsoft.com/dotnet/standard/assembly/"},
	}

	malformedMetadataIssue = &Issue{
		id: MalformedMetadataId,
		mdMsg: `
# Corrupt assembly metadata

The file has a CLI header, but its metadata tables could not be decoded.

## Things you can try:
- Rebuild the application and analyze the fresh output
- Verify the file was not truncated while copying`,
		extLinks: []HttpLink{"https://ecma-international.org/publications-and-standards/standards/ecma-335/"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ asmconflicts config show
~~~
- Compare your file with the example:
~~~cue
system: {
	names: ["mscorlib", "System", "netstandard"]
	prefixes: ["System.", "Microsoft."]
}
resolution: {
	search_dirs: ["./lib"]
	policy: "exact"
}
~~~`,
	}

	invalidArgumentsIssue = &Issue{
		id: InvalidArgumentsId,
		mdMsg: `
# Invalid arguments

## Usage:
~~~
$ asmconflicts -a <assembly> [-s] [-d <dir>]... [--policy exact|redirect] [-o text|json|yaml|toml]
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

The assembly or one of its search directories could not be read.

## Things you can try:
- Check the file permissions of the application directory
- Copy the application to a readable location and analyze the copy`,
	}

	issues = map[Id]*Issue{
		assemblyNotFoundIssue.Id():  assemblyNotFoundIssue,
		notAnAssemblyIssue.Id():     notAnAssemblyIssue,
		malformedMetadataIssue.Id(): malformedMetadataIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		invalidArgumentsIssue.Id():  invalidArgumentsIssue,
		permissionDeniedIssue.Id():  permissionDeniedIssue,
	}
)

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

// Render renders the issue as styled terminal output using the glamour style
// at stylePath ("auto", "dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if links := slices.Concat(i.docLinks, i.extLinks); len(links) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range links {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

// Values returns every known issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
