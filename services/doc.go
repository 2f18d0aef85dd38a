// Package services declares the external collaborator interfaces of
// spec §6.3: sequence, mutex, dictionary, distribution, row-store and
// filesystem. Spec §1 places all of these out of scope as surrounding
// infrastructure ("accessed through the interfaces enumerated in §6");
// this package defines exactly those interfaces, so MasterEngine and
// SlaveEngine depend only on the abstractions, never a concrete bus.
package services
