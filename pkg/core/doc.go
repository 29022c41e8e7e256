// Package core defines the shared language of the nsbrowse system.
//
// This package contains:
//   - Domain entities (Namespace, Member, KindSet)
//   - Closed enumerations (NamespaceMode, MemberMode, DocFacet)
//   - Service interfaces (Host, Tracer)
//   - The error taxonomy shared by every layer
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
