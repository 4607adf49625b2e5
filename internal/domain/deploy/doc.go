// Package deploy contains the domain types of a metadata deployment.
//
// Session is the authenticated pair handed to every stage, ArtifactRef and
// Manifest describe what gets packaged, Options is the typed deploy request
// configuration and Job is the observed state of a remote deployment. The
// error taxonomy shared by all stages lives here as well.
package deploy
