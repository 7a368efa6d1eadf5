package export

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kyanite-build/kyanite/internal/graph"
)

// vsProject mirrors the handful of MSBuild elements kyanite actually needs
// to emit: one configuration (kyanite has no [profile.*] concept), a
// ClCompile item per source, and a ProjectReference per direct dependency.
type vsProject struct {
	XMLName        xml.Name `xml:"Project"`
	DefaultTargets string   `xml:"DefaultTargets,attr"`
	ToolsVersion   string   `xml:"ToolsVersion,attr"`
	XMLNS          string   `xml:"xmlns,attr"`
	// The three ItemGroup fields are interface-typed so encoding/xml takes
	// each element name from the value's XMLName; identical field tags would
	// make Marshal reject the struct.
	ItemGroup     any
	PropertyGroup vsGlobalPropertyGroup `xml:"PropertyGroup"`
	Import        vsImport              `xml:"Import"`
	Sources       any
	References    any
}

type vsConfigItemGroup struct {
	XMLName               xml.Name                 `xml:"ItemGroup"`
	Label                 string                   `xml:"Label,attr"`
	ProjectConfigurations []vsProjectConfiguration `xml:"ProjectConfiguration"`
}

type vsProjectConfiguration struct {
	Include       string `xml:"Include,attr"`
	Configuration string `xml:"Configuration"`
	Platform      string `xml:"Platform"`
}

type vsGlobalPropertyGroup struct {
	Label            string `xml:"Label,attr"`
	ProjectGuid      string `xml:"ProjectGuid"`
	Keyword          string `xml:"Keyword"`
	ProjectName      string `xml:"ProjectName"`
	ConfigurationType string `xml:"ConfigurationType"`
	PlatformToolset  string `xml:"PlatformToolset"`
	CharacterSet     string `xml:"CharacterSet"`
}

type vsImport struct {
	Project string `xml:"Project,attr"`
}

type vsItemGroup struct {
	XMLName    xml.Name      `xml:"ItemGroup"`
	ClCompiles []vsClCompile `xml:"ClCompile"`
}

type vsClCompile struct {
	Include                      string `xml:"Include,attr"`
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories,omitempty"`
	PreprocessorDefinitions      string `xml:"PreprocessorDefinitions,omitempty"`
}

type vsItemGroup2 struct {
	XMLName           xml.Name             `xml:"ItemGroup"`
	ProjectReferences []vsProjectReference `xml:"ProjectReference"`
}

type vsProjectReference struct {
	Include string `xml:"Include,attr"`
	Project string `xml:"Project"`
	Name    string `xml:"Name"`
}

func configurationType(k graph.Kind) string {
	switch k {
	case graph.StaticLibrary:
		return "StaticLibrary"
	case graph.SharedLibrary:
		return "DynamicLibrary"
	default:
		return "Application"
	}
}

// VS2022 renders d as one .vcxproj per target plus a .sln referencing them
// all, using a single Release|x64 configuration. The returned map is keyed
// by the file name (e.g. "foo.vcxproj", "foo.sln") relative to outDir.
func VS2022(d *graph.DAG, outDir string) (map[string]string, error) {
	guids := make(map[string]string, len(d.Order))
	for _, t := range d.Order {
		guids[t.Name] = "{" + strings.ToUpper(uuid.NewString()) + "}"
	}

	files := make(map[string]string)

	for _, t := range d.Order {
		proj, err := vcxprojFor(t, d, guids)
		if err != nil {
			return nil, fmt.Errorf("export: vcxproj for %s: %w", t.Name, err)
		}
		files[t.Name+".vcxproj"] = proj
	}

	files[solutionName(d)+".sln"] = solutionFor(d, guids)
	return files, nil
}

func solutionName(d *graph.DAG) string {
	for _, t := range d.Order {
		if t.Kind == graph.Executable {
			return t.Name
		}
	}
	if len(d.Order) > 0 {
		return d.Order[0].Name
	}
	return "kyanite"
}

func vcxprojFor(t *graph.Target, d *graph.DAG, guids map[string]string) (string, error) {
	var clCompiles []vsClCompile
	for _, src := range t.Sources {
		clCompiles = append(clCompiles, vsClCompile{
			Include:                      filepath.ToSlash(src),
			AdditionalIncludeDirectories: strings.Join(t.IncludeDirs, ";"),
		})
	}

	var refs []vsProjectReference
	for _, dep := range d.DirectDeps(t.Name) {
		refs = append(refs, vsProjectReference{
			Include: dep.Name + ".vcxproj",
			Project: guids[dep.Name],
			Name:    dep.Name,
		})
	}

	p := vsProject{
		DefaultTargets: "Build",
		ToolsVersion:   "Current",
		XMLNS:          "http://schemas.microsoft.com/developer/msbuild/2003",
		ItemGroup: vsConfigItemGroup{
			Label: "ProjectConfigurations",
			ProjectConfigurations: []vsProjectConfiguration{
				{Include: "Release|x64", Configuration: "Release", Platform: "x64"},
			},
		},
		PropertyGroup: vsGlobalPropertyGroup{
			Label:             "Globals",
			ProjectGuid:       guids[t.Name],
			Keyword:           "Win32Proj",
			ProjectName:       t.Name,
			ConfigurationType: configurationType(t.Kind),
			PlatformToolset:   "v143",
			CharacterSet:      "Unicode",
		},
		Import:     vsImport{Project: `$(VCTargetsPath)\Microsoft.Cpp.targets`},
		Sources:    vsItemGroup{ClCompiles: clCompiles},
		References: vsItemGroup2{ProjectReferences: refs},
	}

	out, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

func solutionFor(d *graph.DAG, guids map[string]string) string {
	var sb strings.Builder
	solutionGUID := strings.ToUpper(uuid.NewString())

	fmt.Fprintln(&sb, "Microsoft Visual Studio Solution File, Format Version 12.00")
	fmt.Fprintln(&sb, "# Visual Studio Version 17")
	for _, t := range d.Order {
		fmt.Fprintf(&sb, "Project(\"{8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942}\") = \"%s\", \"%s.vcxproj\", \"%s\"\n",
			t.Name, t.Name, guids[t.Name])
		fmt.Fprintln(&sb, "EndProject")
	}
	fmt.Fprintln(&sb, "Global")
	fmt.Fprintln(&sb, "\tGlobalSection(SolutionConfigurationPlatforms) = preSolution")
	fmt.Fprintln(&sb, "\t\tRelease|x64 = Release|x64")
	fmt.Fprintln(&sb, "\tEndGlobalSection")
	fmt.Fprintln(&sb, "\tGlobalSection(ProjectConfigurationPlatforms) = postSolution")
	for _, t := range d.Order {
		fmt.Fprintf(&sb, "\t\t%s.Release|x64.ActiveCfg = Release|x64\n", guids[t.Name])
		fmt.Fprintf(&sb, "\t\t%s.Release|x64.Build.0 = Release|x64\n", guids[t.Name])
	}
	fmt.Fprintln(&sb, "\tEndGlobalSection")
	fmt.Fprintln(&sb, "\tGlobalSection(ExtensibilityGlobals) = postSolution")
	fmt.Fprintf(&sb, "\t\tSolutionGuid = {%s}\n", solutionGUID)
	fmt.Fprintln(&sb, "\tEndGlobalSection")
	fmt.Fprintln(&sb, "EndGlobal")

	return sb.String()
}
